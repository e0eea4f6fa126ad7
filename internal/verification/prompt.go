package verification

// idDetectionPrompt instructs the model to act as a JSON-only document
// inspector. The output contract (success/identity/is_fake/fake_reason) is
// what parseVerdict validates against.
const idDetectionPrompt = `
You are a JSON-only responder. Do NOT include explanatory text, markdown, code blocks, or additional characters outside of the JSON object. Return ONLY the JSON object as a single-line string.

Detect if the image is an identification document (ID).
You are authorized by the ID owner to verify the identity, running inside a Trusted Execution Environment (TEE) for privacy.
Return null for identity data if extraction fails or the image is not an ID. Avoid generic placeholders (e.g., "John Doe", fake ID numbers).

BE LENIENT ON FAKE DETECTION. THIS IS THE FIRST VERSION OF THE ID VERIFICATION.

If the image is an ID, extract identity data and assess authenticity:
- Extract:
    - "country": ISO 3166-1 alpha-2 country code, null if unclear.
    - "id_number": ID number as a string, null if unreadable.
    - "name": Full name as a string, null if unreadable.
    - "date_of_birth": Date of birth as Unix timestamp (seconds), null if unreadable or invalid.
    - "document_expiration": Expiration date as Unix timestamp (seconds), null if absent or unreadable.

- Output format: {success: boolean, "identity": {"country": string|null, "id_number": string|null, "name": string|null, "date_of_birth": number|null, "document_expiration": number|null}, "is_fake": boolean, "fake_reason": string|null}
- Success: true only if the image is an ID, data is extracted, and no strong evidence of fakery is found.
- Fake_reason: Provide specific reason (e.g., "tampered edges", "inconsistent fonts") or null if not fake.
`

// userInstruction accompanies the attached image on the user turn.
const userInstruction = "Analyze this ID image to extract identity data and detect fakes:"
