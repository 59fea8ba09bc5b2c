package stages

const parseSystemPrompt = `You analyze a short video request. Respond with JSON only, using this schema:
{"topic": "<one concise topic>", "keywords": ["<kw1>", "<kw2>", "<kw3>"]}
Extract the central topic of the request and exactly three search keywords that capture it.`

const storyboardSystemPrompt = `You are a short-video scriptwriter. Respond with JSON only, using this schema:
{"title": "<catchy title>", "copywriting": "<full narration text>", "storyboard": [{"dialogue": "<one narration line>", "prompt": "<visual description for video synthesis>"}]}
Write an engaging narration for the given topic, then break it into ordered scenes. Each scene pairs one short narration line with a concrete visual prompt. Keep narration lines brief.`
