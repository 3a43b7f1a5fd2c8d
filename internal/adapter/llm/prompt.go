package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atlasbank/mailtriage/internal/core/ports"
)

// ValidCategories is the business-category vocabulary the classifier is asked
// to choose from. Anything else is normalized to General_Inquiry.
var ValidCategories = []string{
	"Credit_Cards",
	"Insurance",
	"Loan_Mortgage",
	"Online_Banking",
	"Investment",
	"Payment",
	"General_Inquiry",
}

// classificationPayload is the raw JSON shape the model is instructed to
// return. Flat factors carry 0/1; additional_topics carries a count.
type classificationPayload struct {
	Factors           map[string]int `json:"factors"`
	Reasoning         string         `json:"reasoning"`
	Intent            string         `json:"intent"`
	Category          string         `json:"category"`
	SuggestedResponse string         `json:"suggested_response"`
}

const systemInstruction = "You are a customer-service email analyst for a retail bank. " +
	"Analyze emails, identify risk factors and produce structured assessments in JSON format."

// buildPrompt renders the classification instruction for one email.
func buildPrompt(email ports.EmailContext) string {
	var sb strings.Builder

	sb.WriteString("Analyze the email's content and identify risk factors that affect whether a suggested response is safe to send automatically, then output the information in JSON format.\n\n")

	if email.Subject != "" {
		sb.WriteString(fmt.Sprintf("**Subject:** %s\n", email.Subject))
	}
	sb.WriteString(fmt.Sprintf("**Email content:**\n%s\n\n", email.Body))
	sb.WriteString(fmt.Sprintf("**Knowledge results:**\n%s\n\n", orDefault(email.KnowledgeResults, "No relevant information found in the knowledge base.")))
	sb.WriteString(fmt.Sprintf("**Customer name:** %s\n", orDefault(email.CustomerName, "Valued Customer")))

	sb.WriteString("**Supplemental information:**\n")
	if email.CreditScore != nil {
		sb.WriteString(fmt.Sprintf("- Credit score: %d\n", *email.CreditScore))
	}
	if email.SpendingProfile != "" {
		sb.WriteString(fmt.Sprintf("- Spending profile: %s\n", email.SpendingProfile))
	}
	if email.ServiceLevel != "" {
		sb.WriteString(fmt.Sprintf("- Service level: %s\n", email.ServiceLevel))
	}
	if email.AdditionalInfo != "" {
		sb.WriteString(fmt.Sprintf("- Additional information: %s\n", email.AdditionalInfo))
	}
	sb.WriteString("\n")

	sb.WriteString("Identify these factors (return 1 if present, 0 if not):\n")
	sb.WriteString("- missing_knowledge: No relevant knowledge base information available\n")
	sb.WriteString("- unclear_info: Incomplete or ambiguous information\n")
	sb.WriteString(fmt.Sprintf("- premium_complaint: Premium service level issues; consider if the customer's service level (%s) is \"Premium\" and they have any complaint or concern\n", orDefault(email.ServiceLevel, "unknown")))
	sb.WriteString("- angry_tone: Negative sentiment detected\n")
	sb.WriteString("- urgency: Time-sensitive requests requiring quick response\n")
	sb.WriteString("- additional_topics: Count of additional unrelated topics beyond the first\n\n")

	sb.WriteString("Provide reasoning for detected factors only (no math calculations).\n\n")

	sb.WriteString("IMPORTANT: In the suggested_response greeting:\n")
	sb.WriteString("- If the customer name is a specific name, use that exact name.\n")
	sb.WriteString("- Only use \"Dear Valued Customer,\" if the customer name field shows \"Valued Customer\" (indicating no customer profile was found).\n\n")

	sb.WriteString("Output ONLY valid JSON:\n")
	sb.WriteString("```json\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"factors\": {\n")
	sb.WriteString("    \"missing_knowledge\": 0 or 1,\n")
	sb.WriteString("    \"unclear_info\": 0 or 1,\n")
	sb.WriteString("    \"premium_complaint\": 0 or 1,\n")
	sb.WriteString("    \"angry_tone\": 0 or 1,\n")
	sb.WriteString("    \"urgency\": 0 or 1,\n")
	sb.WriteString("    \"additional_topics\": number of additional topics\n")
	sb.WriteString("  },\n")
	sb.WriteString("  \"reasoning\": \"Reasoning for detected factors only\",\n")
	sb.WriteString("  \"intent\": \"Summary of customer intent with key points\",\n")
	sb.WriteString(fmt.Sprintf("  \"category\": \"%s\",\n", strings.Join(ValidCategories, "|")))
	sb.WriteString("  \"suggested_response\": \"Dear [customer name],\\n\\n[Personalized reply based on knowledge results and supplemental information]\\n\\nKind regards,\\nCustomer Service Team\\nAtlasBank\"\n")
	sb.WriteString("}\n")
	sb.WriteString("```\n")

	return sb.String()
}

// parseClassification extracts the JSON payload from a model response,
// tolerating markdown code fences and surrounding prose.
func parseClassification(response string) (*classificationPayload, error) {
	jsonStr := response
	if idx := strings.Index(response, "```json"); idx != -1 {
		jsonStr = response[idx+7:]
		if endIdx := strings.Index(jsonStr, "```"); endIdx != -1 {
			jsonStr = jsonStr[:endIdx]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		jsonStr = response[idx+3:]
		if endIdx := strings.Index(jsonStr, "```"); endIdx != -1 {
			jsonStr = jsonStr[:endIdx]
		}
	}

	jsonStr = strings.TrimSpace(jsonStr)

	var payload classificationPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w (response: %s)", err, jsonStr)
	}

	return &payload, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
