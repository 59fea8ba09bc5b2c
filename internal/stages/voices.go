package stages

import (
	"fmt"
	"strings"
)

// voiceOption is one entry of the narration voice library.
type voiceOption struct {
	ID        string
	Name      string
	Traits    string
	Scenarios string
	Languages string
}

// voiceLibrary lists the synthesis voices narration may pick from. The IDs
// follow the provider's voice catalogue.
var voiceLibrary = []voiceOption{
	{ID: "longnan_v2", Name: "Longnan", Traits: "wise young male", Scenarios: "general", Languages: "Chinese, English"},
	{ID: "longyuan_v2", Name: "Longyuan", Traits: "warm soothing female", Scenarios: "general", Languages: "Chinese, English"},
	{ID: "longanrou", Name: "Longanrou", Traits: "gentle confidante female", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longqiang_v2", Name: "Longqiang", Traits: "romantic charming female", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longhan_v2", Name: "Longhan", Traits: "warm devoted male", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longxing_v2", Name: "Longxing", Traits: "gentle girl-next-door female", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longhua_v2", Name: "Longhua", Traits: "upbeat sweet female", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longwan_v2", Name: "Longwan", Traits: "positive refined female", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longcheng_v2", Name: "Longcheng", Traits: "sharp young male", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longfeifei_v2", Name: "Longfeifei", Traits: "sweet playful female", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longxiaocheng_v2", Name: "Longxiaocheng", Traits: "magnetic bass male", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longzhe_v2", Name: "Longzhe", Traits: "earnest warm male", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longyan_v2", Name: "Longyan", Traits: "warm spring-breeze female", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longtian_v2", Name: "Longtian", Traits: "magnetic rational male", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longze_v2", Name: "Longze", Traits: "warm energetic male", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longshao_v2", Name: "Longshao", Traits: "upbeat positive male", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "longhao_v2", Name: "Longhao", Traits: "tender melancholic male", Scenarios: "companionship", Languages: "Chinese, English"},
	{ID: "kabuleshen_v2", Name: "Longshen", Traits: "powerful vocalist male", Scenarios: "singer", Languages: "Chinese, English"},
	{ID: "longjielidou_v2", Name: "Longjielidou", Traits: "sunny playful boy", Scenarios: "children", Languages: "Chinese, English"},
	{ID: "longling_v2", Name: "Longling", Traits: "deadpan naive girl", Scenarios: "children", Languages: "Chinese, English"},
	{ID: "longke_v2", Name: "Longke", Traits: "innocent well-behaved girl", Scenarios: "children", Languages: "Chinese, English"},
}

func voiceKnown(id string) bool {
	for _, voice := range voiceLibrary {
		if voice.ID == id {
			return true
		}
	}
	return false
}

const voiceSystemPrompt = `You are a veteran voice director. Given narration text and a voice library, pick the single best-suited voice. Judge the text's language first, then its scenario (news, story, service, children), then its mood. Respond with JSON only, using this schema:
{"voice": "<voice id from the library>"}
Only ids that appear in the library are valid. Never invent an id.`

func buildVoicePrompt(narration string) string {
	var sb strings.Builder
	sb.WriteString("Voice library:\n")
	for _, voice := range voiceLibrary {
		fmt.Fprintf(&sb, "- %s scenario, %s (%s), id: %s, languages: %s\n",
			voice.Scenarios, voice.Name, voice.Traits, voice.ID, voice.Languages)
	}
	sb.WriteString("\nNarration text:\n")
	sb.WriteString(narration)
	return sb.String()
}
