package llm

import (
	"fmt"
	"time"
)

const isExpensePrompt = "Does the user message contain a number, in digits or in words?\n" +
	"Answer with exactly one word: true or false."

func extractPrompt(defaultCurrency string, now time.Time) string {
	return "You extract a single expense from a chat message.\n\n" +
		"Date:\n" +
		"- If there is no date or time, use null.\n" +
		"- Partial or relative dates and times are counted from the current date and time.\n" +
		"- Ambiguous dates are in the past, as close to the present as possible.\n" +
		"- Understand vague times such as midnight, noon, in the morning, last monday.\n" +
		"- Dates that belong to the description are not the expense date.\n\n" +
		"Amount:\n" +
		"- A positive integer or decimal number, usually at the start of the message.\n\n" +
		"Currency:\n" +
		"- A symbol or name right after the amount ($, €, USD, тенге, рублей, бат).\n" +
		"- Return it as an ISO 4217 code.\n" +
		fmt.Sprintf("- If there is no currency, use %s.\n\n", defaultCurrency) +
		"Description:\n" +
		"- The text after the amount and currency, without the extracted date.\n\n" +
		"Do not make things up. Put everything that was not extracted into the description.\n\n" +
		fmt.Sprintf("Current date and time: %s\n\n", now.Format(time.RFC3339)) +
		"Return ONLY a raw JSON object, no code fences, with these fields:\n" +
		"- \"amount\": number\n" +
		"- \"currency\": string\n" +
		"- \"date\": string in RFC 3339 with the offset of the current time, or null\n" +
		"- \"description\": string\n"
}

const remarkPrompt = "Write a short witty remark in Russian about your boss' expense, said to the boss personally.\n" +
	"Be a creative but respectful and kind butler.\n" +
	"You may mention a fact about the number from history, culture or science, " +
	"or ask a rhetorical question about the expense when it fits.\n" +
	"Note a missing or unclear description, or an unusual time of the expense.\n\n" +
	"Rules:\n" +
	"- Do not quote the expense data directly.\n" +
	"- Do not mention the boss' gender and do not use pronouns or forms of address.\n" +
	"- Keep proper nouns as they are.\n" +
	"- Do not compare the amount to other expenses and do not make things up.\n" +
	"- One short sentence at most."

const receiptPrompt = "The photo shows a fiscal receipt with a QR code.\n" +
	"Return ONLY the URL encoded in the QR code, with no other text.\n" +
	"If there is no readable QR code, return NONE."
