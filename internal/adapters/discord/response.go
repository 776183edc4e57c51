package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// messageLimit is Discord's cap on message content length. Chunks stay a
// little under it.
const (
	messageLimit = 2000
	chunkBudget  = 1900
)

// Nick > GlobalName > Username
func resolveDisplayName(member *discordgo.Member) string {
	if member == nil || member.User == nil {
		return ""
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}

// codeBlockChunks lays lines out in code blocks of at most budget
// characters each, header above the first. A single line longer than the
// budget is cut.
func codeBlockChunks(header string, lines []string, budget int) []string {
	const fence = "```"
	var (
		chunks []string
		b      strings.Builder
	)
	open := func(prefix string) {
		b.Reset()
		if prefix != "" {
			b.WriteString(prefix)
			b.WriteByte('\n')
		}
		b.WriteString(fence)
	}
	closeChunk := func() {
		b.WriteByte('\n')
		b.WriteString(fence)
		chunks = append(chunks, b.String())
	}

	open(header)
	empty := true
	for _, line := range lines {
		if limit := budget - len(fence)*2 - 2; len(line) > limit {
			line = line[:limit]
		}
		if !empty && b.Len()+1+len(line)+1+len(fence) > budget {
			closeChunk()
			open("")
			empty = true
		}
		b.WriteByte('\n')
		b.WriteString(line)
		empty = false
	}
	closeChunk()
	return chunks
}
