package extractor

import "strings"

const promptTemplate = `You are a forensic log analysis assistant. Read the text between the markers and extract every IP address (IPv4 or IPv6) together with the timestamp most closely associated with it.

STRICT RESPONSE RULES:
1. Respond ONLY with a valid JSON array. The response must start with [ and end with ].
2. Do not write any text before or after the array and do not wrap it in markdown code fences.
3. Every element must be an object with exactly two keys:
   - "ip_address": string, the address exactly as it appears in the text.
   - "timestamp_str": string, the original text of the associated date/time, copied verbatim. Use null when no timestamp is associated with the address.
4. Include private, loopback and reserved addresses too; do not filter anything.
5. Include partially obfuscated addresses when the intended address is unambiguous (for example 8.8.8[.]8 or 1.1.1(.)1), copying them as written.
6. List the pairs in the order the addresses appear in the text. An address that appears with several different timestamps produces one element per timestamp.
7. If the text contains no IP address, respond with [].

Example of a PERFECT response:
[
  {"ip_address": "203.0.113.45", "timestamp_str": "2024-03-15 10:30:00 UTC"},
  {"ip_address": "8.8.4.4", "timestamp_str": "Mar 15 2024 08:15:22 -0500"},
  {"ip_address": "198.51.100.10", "timestamp_str": null},
  {"ip_address": "2001:db8:abcd:0012::1", "timestamp_str": "2024/03/14 15:45:30.123"}
]

Text to analyze:
--------------------
{{TEXT}}
--------------------`

// BuildExtractionPrompt returns the fixed extraction instructions wrapped around text.
func BuildExtractionPrompt(text string) string {
	return strings.Replace(promptTemplate, "{{TEXT}}", text, 1)
}
