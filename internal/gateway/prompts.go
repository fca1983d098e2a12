package gateway

import (
	"fmt"

	"github.com/sakif/nexusmena/internal/model"
)

// Fallback texts shown to users when a call cannot produce an answer.
const (
	SummaryMissingKey = "AI Service Unavailable (Missing Key)"
	SummaryError      = "Error generating summary."
	SummaryEmpty      = "Could not generate summary."

	MarketMissingKey = "AI Analysis Unavailable"
	MarketError      = "Could not analyze market data."
	MarketEmpty      = "No insights available."

	ChatMissingKey = "I'm sorry, I cannot connect to the AI service right now. Please check your API key."
	ChatError      = "I encountered an error processing your request."
)

const assistantInstruction = `You are NexusMena AI, a specialized assistant for the NexusMena tech platform.
You have access to Global and Egyptian tech news, startups, events, and market data.
Your goal is to help users find information within the platform, summarize articles, or explain complex tech/financial concepts.
Be concise, professional, and helpful.
If provided with Context Data, prioritize that information.
Answer in the language the user speaks (English or Arabic).`

func summaryPrompt(text string, lang model.Language) string {
	if lang == model.LanguageArabic {
		return "لخّص النص التقني التالي في 3 نقاط رئيسية باللغة العربية:\n\n" + text
	}
	return "Summarize the following tech content into 3 concise bullet points:\n\n" + text
}

func translatePrompt(text string, target model.Language) string {
	return fmt.Sprintf("Translate the following text to %s. Keep technical terms accurate:\n\n%s", target.Name(), text)
}

func marketPrompt(snapshot string) string {
	return "You are a financial analyst specializing in Egyptian and Global tech markets. " +
		"Analyze this data snapshot and give 2 sentences of insight:\n" + snapshot
}

// withPageContext prefixes the user's question with what they are looking at.
func withPageContext(message, pageContext string) string {
	if pageContext == "" {
		return message
	}
	return fmt.Sprintf("[Context from current page: %s]\n\nUser Question: %s", pageContext, message)
}
