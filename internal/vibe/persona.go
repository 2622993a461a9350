package vibe

import "strings"

// Persona flavours prompts by channel.
type Persona string

const (
	PersonaNormal Persona = "normal"
	PersonaCrypto Persona = "crypto"
	PersonaGamer  Persona = "gamer"
	PersonaTech   Persona = "tech"
	PersonaMusic  Persona = "music"
	PersonaMovie  Persona = "movie"
)

var personaPrompts = map[Persona]string{
	PersonaCrypto: "You are a crypto enthusiast. Use crypto slang.",
	PersonaGamer:  "You are a casual gamer. Talk about games.",
	PersonaTech:   "You are interested in technology.",
	PersonaMusic:  "You love music.",
	PersonaMovie:  "You watch movies and shows.",
}

// PersonaFor picks a persona from the channel's display name.
func PersonaFor(channelName string) Persona {
	name := strings.ToLower(channelName)
	switch {
	case strings.Contains(name, "crypto"), strings.Contains(name, "trading"):
		return PersonaCrypto
	case strings.Contains(name, "game"), strings.Contains(name, "play"):
		return PersonaGamer
	case strings.Contains(name, "tech"), strings.Contains(name, "code"):
		return PersonaTech
	case strings.Contains(name, "music"):
		return PersonaMusic
	case strings.Contains(name, "movie"):
		return PersonaMovie
	}
	return PersonaNormal
}

// Apply prefixes prompt with the persona line. Normal leaves it untouched.
func (p Persona) Apply(prompt string) string {
	line, ok := personaPrompts[p]
	if !ok {
		return prompt
	}
	return line + "\n\n" + prompt
}
