package analyzer

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

var systemPrompt = strings.TrimSpace(dedent.Dedent(`
	You are a merchant compliance analyst. You review screenshots of business
	websites and assess whether the business is safe to onboard for payment
	processing. You always answer with a single JSON object and nothing else.
`))

var userPromptTemplate = strings.TrimSpace(dedent.Dedent(`
	Review the attached screenshot of the website for the business %q.

	Score each area from 0 (high risk) to 100 (no concerns) and explain briefly:
	- restrictedItems: does the site sell or promote restricted or prohibited goods?
	- productPages: are there clear product pages with prices and descriptions?
	- ownership: does the site plausibly belong to %q?
	- overallSafety: overall impression of legitimacy and safety.

	Respond ONLY with a JSON object of this exact shape, no markdown:
	{
	  "score": <overall 0-100>,
	  "metadata": {
	    "summary": "<one or two sentences>",
	    "restrictedItems": {"score": <0-100>, "message": "<reason>"},
	    "productPages": {"score": <0-100>, "message": "<reason>"},
	    "ownership": {"score": <0-100>, "message": "<reason>"},
	    "overallSafety": {"score": <0-100>, "message": "<reason>"}
	  }
	}
`))

// BuildPrompt renders the user instruction for a business
func BuildPrompt(businessName string) string {
	name := strings.TrimSpace(businessName)
	return fmt.Sprintf(userPromptTemplate, name, name)
}
