package assist

// Prompt templates sent to the completion collaborator.
const (
	SystemMessage = "You are an expert form optimization AI assistant. Provide concise, accurate responses in the requested format."

	formFillTemplate = `You are a helpful assistant that fills out forms based on user instructions.

User instruction: "%s"

Available form fields:
%s
%s

Extract relevant information from the user's instruction and map it to the appropriate form fields.
Return a JSON object with field names as keys and values as the extracted data.
Only include fields that have clear values in the user's instruction.
For checkboxes, use true/false. For numbers, use numeric values. For text/select, use strings.

Example format: {"firstName": "John", "lastName": "Doe", "age": 30, "isActive": true}

Return only the JSON object, no additional text.`

	currentValuesPrefix = "\nCurrent form values:\n"

	// ImageQualityPrompt asks a vision model whether an upload is usable.
	ImageQualityPrompt = `You are a quality checker for user-uploaded photos.
Decide if the image is too blurry to use. If you are able to read text in the image, be less strict.
Return ONLY valid JSON with:
{
  "is_blurry": boolean,
  "blurriness_score": number,
  "reason": string,
  "recommend_reupload": boolean
}`
)
