package notes

const (
	promptTransform = `Convert the following text into well-structured Markdown.
Rules:
1. Use appropriate headers (#, ##, ###).
2. Use lists for items.
3. Identify key regulatory terms, risk factors, or medical definitions and wrap them in HTML spans with color 'coral': <span style='color: coral'>KEYWORD</span>.
4. Keep the content accurate to the source.`

	promptEntity = `Analyze the provided text and:
1. Write a comprehensive summary of the content (approx 150 words).
2. Extract exactly 20 key entities (concepts, regulations, devices, tests, organizations, etc.).
3. For each entity, provide a brief context from the text.

Return ONLY valid JSON in the following format:
{
  "summary": "...",
  "entities": [
    { "name": "Entity Name", "context": "Context from text..." },
    ...
  ]
}`

	promptFormat = `Reorganize the following text to improve readability and flow while strictly preserving all original information.
- Do not summarize; keep all details.
- Use clear headings and bullet points where appropriate.
- Format as Markdown.`

	promptMindmap = `Create a Mermaid.js mindmap syntax based on the following text.
- Start with 'mindmap'
- Use the main topic as the root.
- Branch out into key categories (e.g., Regulatory, Clinical, Performance, Risk).
- Return ONLY the mermaid code block.`

	promptQuiz = `Generate a 5-question multiple-choice quiz based on the text to test understanding of the FDA 510(k) requirements mentioned.
- Provide the question, 4 options, and the correct answer with a short explanation.
- Return as Markdown.`
)
