package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"verifybot/internal/stats"
	"verifybot/internal/store"
)

const (
	colorView  = 0x0099FF
	colorStats = 0x00FF00
)

func viewEmbed(events []store.VerificationEvent) *discordgo.MessageEmbed {
	var b strings.Builder
	for i, ev := range events {
		fmt.Fprintf(&b, "**%d.** %s verified by %s on %s\n",
			i+1, ev.VerifiedUserName, ev.VerifierUserName,
			ev.At.UTC().Format("2006-01-02 15:04 MST"))
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Recent Verification Logs (%d)", len(events)),
		Description: b.String(),
		Color:       colorView,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func statsEmbed(sum stats.Summary) *discordgo.MessageEmbed {
	mostActive := "None"
	if sum.MostActiveVerifier != "" {
		mostActive = fmt.Sprintf("%s (%d verifications)", sum.MostActiveVerifier, sum.MostActiveVerifierCount)
	}
	firstAt := "None"
	if !sum.FirstEventAt.IsZero() {
		firstAt = sum.FirstEventAt.UTC().Format("2006-01-02")
	}

	return &discordgo.MessageEmbed{
		Title: "Verification Statistics",
		Color: colorStats,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Total Verifications", Value: strconv.Itoa(sum.Total), Inline: true},
			{Name: "Unique Verifiers", Value: strconv.Itoa(sum.UniqueVerifiers), Inline: true},
			{Name: "Unique Users Verified", Value: strconv.Itoa(sum.UniqueVerified), Inline: true},
			{Name: "Most Active Verifier", Value: mostActive, Inline: false},
			{Name: "Last 7 Days", Value: strconv.Itoa(sum.RecentCount), Inline: true},
			{Name: "First Verification", Value: firstAt, Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
