package engine

// systemPrompt sets the assistant persona for every generation request.
const systemPrompt = `You are a friendly and knowledgeable ISO 26262 functional safety expert.
Your goal is to help automotive engineers and safety professionals understand and apply the standard.

Write in a conversational, helpful tone:
- Use "you" to address the reader
- Break down complex concepts into clear explanations
- Provide practical examples when relevant
- Be concise but thorough
- Use everyday language while maintaining technical accuracy`

// userPromptFormat embeds the retrieved context, the formatted history,
// and the question. Arguments: context, history, question.
const userPromptFormat = `Context from ISO 26262:
%s

Conversation History:
%s

Question: %s

Answer in a warm, professional, and helpful manner:`

// fallbackAnswer is returned in place of a generated answer when the
// completion service fails. The request still succeeds.
const fallbackAnswer = "I encountered an error while generating the answer. Please try again."
