package scanning

// textExtractionPrompt is prepended to a statement's text layer
const textExtractionPrompt = `Extract all financial transactions (charges, purchases, deposits, payments, credits, refunds) from the following bank statement text.

Format the result as raw CSV with exactly three columns and a single header row:
Date,Description,Amount

Rules:
- Do not include any explanation or commentary, only the CSV
- Do not use markdown code blocks
- Keep the sign of each amount (money out is negative) and remove thousands separators
- Do not include balances, totals or summaries

`

// imageExtractionPrompt accompanies each rendered page image
const imageExtractionPrompt = `From this bank statement page, extract only the transaction rows (charges, purchases, deposits, payments, credits, refunds). Each transaction must have exactly 3 fields: Date, Description, and Amount.

Format the response as raw CSV with a header row: Date,Description,Amount

Rules:
- Do not include balances, totals, summaries, or any additional explanations
- If a line is missing any of the three fields, skip it
- Do not use markdown code blocks
- Keep the sign of each amount (money out is negative) and remove thousands separators`

// systemPrompt is used by providers that support a separate system message
const systemPrompt = "You are an expert at reading bank statements and extracting transactions as clean CSV."
