package analyze

import "fmt"

// InspectionPrompt instructs the model to answer with exactly one of the
// two verdict phrases.
const InspectionPrompt = `You are an AI assistant tasked with determining whether an object in an image has a defect or not. Your goal is to analyze the image provided and categorize it into one of two categories: "Defect Present" or "No Defect." Only defects that are large and significant should be identified as "Defect Present." Minor, small, or insignificant imperfections should be categorized as "No Defect."

Please follow these instructions:

1. Carefully examine the entire image to identify any defects on the object.
2. Assess the size and significance of any defect found. Only classify as "Defect Present" if the defect is clearly large and materially affects the object's quality or function.
3. If no such large or significant defects are observed, classify the image as "No Defect."
4. Provide your classification clearly and concisely.

# Output Format

Respond only with one of the following exact phrases:

- Defect Present
- No Defect

Do not add any additional commentary or explanation unless specifically requested.

# Notes

- You will be given images with objects; focus exclusively on identifying large and significant defects.
- Avoid false positives by ignoring small scratches, minor discolorations, or insignificant blemishes.`

// acknowledgement is replayed as the model's first turn so that the image
// turn is answered with the bare phrase.
const acknowledgement = `The output must be exactly "Defect Present" or "No Defect". I will look at the object, evaluate the size and impact of any imperfection, and output only the chosen classification phrase.`

const awaitingImage = `Please provide the image you would like me to analyze.`

// imageTurn is the text accompanying the frame.
func imageTurn(label string) string {
	if label == "" {
		return "Here is the image I would like you to analyze:"
	}
	return fmt.Sprintf("Here is the image I would like you to analyze. A local classifier identified the object as: %s.", label)
}
