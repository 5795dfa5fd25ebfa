package llm

import (
	"fmt"
	"strings"

	"github.com/niseko-gazet/haystack/internal/textutil"
	"github.com/niseko-gazet/haystack/internal/types"
)

// Prompt templates for classification, enrichment, translation and
// cross-language comparison. All prompts instruct the model to answer
// in English JSON regardless of the article language.

const classifySystem = `You are Haystack, an AI news classifier for Niseko Gazet, a local news platform covering the Niseko area of Hokkaido, Japan.

Your job is to analyze articles and determine:
1. Relevance to the Niseko area and its readership
2. Topic categorization
3. Geographic tagging
4. Priority level
5. Brief reasoning

CRITICAL RULES:
- Score relevance 0.0 to 1.0 (1.0 = directly about Niseko)
- Articles about Hokkaido get moderate relevance (0.4-0.6)
- Articles about Japan-wide policy affecting Niseko get low-moderate (0.3-0.5)
- Completely unrelated articles get very low scores (0.0-0.2)
- Be generous with relevance, it's better to include marginally relevant content for human review
- You MUST handle articles in both English and Japanese (日本語)
- Always respond in English JSON regardless of the article language

JAPANESE ARTICLE HANDLING:
- Japanese place names should be matched to geo_tags (e.g., 倶知安町 → kutchan, ニセコ町 → niseko_town, 蘭越町 → rankoshi)
- Common Hokkaido terms: 北海道 = Hokkaido, 後志 = Shiribeshi (subprefecture containing Niseko), 羊蹄山 = Mt. Yotei
- Municipal sources (町, 市, 村) from the Niseko area are highly relevant (0.7-1.0)
- JMA weather warnings (気象警報) for Shiribeshi/Niseko area are high priority

Respond with ONLY valid JSON.`

const classifyVocabulary = `Valid topics: tourism, snow_conditions, local_government, business, events, infrastructure, environment, safety, culture, sports, real_estate, food_dining, transport, education, health

Valid geo_tags: niseko, hirafu, annupuri, hanazono, moiwa, kutchan, rusutsu, niseko_town, rankoshi, kimobetsu, makkari, kyogoku, shiribeshi, yotei, hokkaido

Valid priorities: breaking, high, normal, low`

// ClassifyRequest builds a single-article classification request.
func ClassifyRequest(a types.RawArticle) Request {
	prompt := fmt.Sprintf(`Classify this article for Niseko Gazet relevance.

TITLE: %s
SOURCE: %s (%s)
LANGUAGE: %s
BODY (first 2000 chars):
%s

Respond with this exact JSON format:
{
  "relevance_score": 0.0,
  "topics": ["topic1", "topic2"],
  "geo_tags": ["area1"],
  "priority": "normal",
  "reasoning": "Brief explanation in English"
}

%s`, a.Title, a.SourceName, a.SourceKind, a.Language,
		textutil.Truncate(a.Body, 2000), classifyVocabulary)

	return Request{System: classifySystem, Prompt: prompt, Temperature: 0.1}
}

// ClassifyBatchRequest builds a request classifying several articles
// in one call. The response is a JSON array in article order.
func ClassifyBatchRequest(articles []types.RawArticle) Request {
	var block strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&block, "--- ARTICLE %d ---\nTITLE: %s\nSOURCE: %s (%s)\nLANGUAGE: %s\nBODY (first 1000 chars):\n%s\n\n",
			i+1, a.Title, a.SourceName, a.SourceKind, a.Language,
			textutil.Truncate(a.Body, 1000))
	}

	prompt := fmt.Sprintf(`Classify these %d articles for Niseko Gazet relevance.
Return a JSON array with one object per article, in the same order.

ARTICLES:
%s
Respond with ONLY a JSON array of %d objects, each with this format:
{
  "relevance_score": 0.0,
  "topics": ["topic1"],
  "geo_tags": ["area1"],
  "priority": "normal",
  "reasoning": "Brief explanation"
}

%s`, len(articles), block.String(), len(articles), classifyVocabulary)

	return Request{System: classifySystem, Prompt: prompt, Temperature: 0.1}
}

const enrichSystem = `You are Haystack, an AI news enrichment engine for Niseko Gazet.

Your job is to extract structured 5W1H information from classified articles:
- WHO is involved
- WHAT happened
- WHEN it occurred
- WHERE it happened
- WHY it happened
- HOW it happened

Also extract direct quotes, evidence references, and identify any risk flags.

CRITICAL RULES:
- NEVER fabricate information that isn't in the source text
- NEVER add facts, quotes, or details not present in the article
- If information is unavailable, use null
- Extract actual quotes with proper attribution
- Flag content that may need editorial review
- You MUST handle articles in both English and Japanese (日本語)
- Always respond in English JSON regardless of the article language
- For Japanese articles: translate key facts to English in 5W1H fields, keep original quotes in Japanese with English translation

JAPANESE CONTENT RULES:
- Translate the "what" summary to English
- Keep Japanese proper nouns in both scripts: "倶知安町 (Kutchan Town)"
- For quotes: include original Japanese text AND English translation
- Where location: use English name with Japanese in parentheses, e.g. "Kutchan Town (倶知安町)"

Respond with ONLY valid JSON.`

// EnrichRequest builds the 5W1H extraction request for a classified
// article. title and body may be the translated versions for Japanese
// articles.
func EnrichRequest(a types.ClassifiedArticle, title, body string) Request {
	prompt := fmt.Sprintf(`Extract structured 5W1H information from this article.

TITLE: %s
SOURCE: %s
LANGUAGE: %s
PUBLISHED: %s
BODY:
%s

Respond with this exact JSON format:
{
  "who": "Person or organization involved, or null",
  "what": "Concise summary of what happened (in English)",
  "when_occurred": "ISO datetime if mentioned, or null",
  "where_location": "Specific location if mentioned (English with Japanese in parentheses), or null",
  "why": "Reason or cause if mentioned, or null",
  "how": "Method or process if mentioned, or null",
  "quotes": [
    {"speaker": "Name", "text": "Exact quote (original language)", "translation": "English translation if not English", "context": "Context"}
  ],
  "evidence_refs": [
    {"type": "document|link|photo|video", "url": "URL if available", "description": "What it is"}
  ],
  "risk_flags": [
    {"type": "flag_type", "description": "Why flagged", "severity": "low|medium|high"}
  ],
  "fact_check_notes": [
    {"claim": "Verifiable claim", "verification_suggestion": "How to verify"}
  ],
  "confidence_score": 75
}

Valid risk_flag types: identifiable_private_individual, minor_involved, allegation_or_crime_accusation, ongoing_investigation, medical_or_public_health_claim, high_defamation_risk, graphic_content, sensitive_location

Confidence score (0-100): How confident you are in the extraction quality.
100 = all 5W1H clearly answered with quotes and evidence.
50 = partial information, some gaps.
0 = very little extractable information.`,
		title, a.Raw.SourceName, a.Raw.Language, a.Raw.PublishedAt, textutil.Truncate(body, 6000))

	return Request{System: enrichSystem, Prompt: prompt, Temperature: 0.2}
}

const translateSystem = `You are a professional Japanese-to-English translator for a local news platform covering the Niseko area of Hokkaido, Japan.

Rules:
- Translate accurately and naturally to English
- Preserve all factual content, NEVER add or remove information
- Keep proper nouns in both scripts: "倶知安町 (Kutchan Town)"
- Keep Japanese organization names with translation: "北海道開発局 (Hokkaido Development Bureau)"
- For quotes: include both Japanese original and English translation
- Maintain the journalistic tone of the original

Respond with ONLY valid JSON.`

// TranslateRequest builds the JA to EN translation request.
func TranslateRequest(title, body string) Request {
	prompt := fmt.Sprintf(`Translate this Japanese news article to English.

TITLE (JA): %s
BODY (JA):
%s

Respond with:
{
  "title_en": "English title",
  "body_en": "Full English translation of the body",
  "summary_en": "1-2 sentence English summary"
}`, title, body)

	return Request{System: translateSystem, Prompt: prompt, Temperature: 0.2}
}

const crossLangSystem = `You are a bilingual news deduplication engine. Given two articles in different languages, determine if they cover the SAME story/event.

Rules:
- Two articles about the same event are duplicates even if one is in Japanese and one in English
- Articles about different aspects of the same topic are NOT duplicates
- Focus on: same event, same date, same people/organizations, same location
- Respond with ONLY valid JSON.`

// CrossLangRequest builds the same-story comparison request between
// two articles in different languages.
func CrossLangRequest(langA, titleA, bodyA, langB, titleB, bodyB string) Request {
	prompt := fmt.Sprintf(`Are these two articles about the same story?

ARTICLE A (%s):
Title: %s
Body: %s

ARTICLE B (%s):
Title: %s
Body: %s

Respond with:
{
  "is_same_story": true/false,
  "confidence": 0.0-1.0,
  "reasoning": "Brief explanation"
}`, langA, titleA, textutil.Truncate(bodyA, 800),
		langB, titleB, textutil.Truncate(bodyB, 800))

	return Request{System: crossLangSystem, Prompt: prompt, Temperature: 0.1}
}
