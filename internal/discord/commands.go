package discord

import "github.com/bwmarrin/discordgo"

// Commands returns the application command set.
//
// Option-level gating (DefaultMemberPermissions) hides the commands from
// non-moderators in the client; the handler still enforces the mod role on
// every invocation.
func Commands() []*discordgo.ApplicationCommand {
	manageRoles := int64(discordgo.PermissionManageRoles)
	dmFalse := false
	minLimit := float64(1)
	maxLimit := float64(50)

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "verify",
			Description:              "Verify a member and manage verification settings",
			DefaultMemberPermissions: &manageRoles,
			DMPermission:             &dmFalse,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "user",
					Description: "Grant the verified role and remove the unverified role",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "user",
							Description: "The member to verify",
							Type:        discordgo.ApplicationCommandOptionUser,
							Required:    true,
						},
						{
							Name:        "notes",
							Description: "Free-text note recorded with the verification",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    false,
						},
						{
							Name:        "silent",
							Description: "Skip verification logging entirely",
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Required:    false,
						},
					},
				},
				{
					Name:        "config",
					Description: "Configure the verification log channel and verbosity",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "channel",
							Description: "Channel to receive verification announcements",
							Type:        discordgo.ApplicationCommandOptionChannel,
							Required:    false,
						},
						{
							Name:        "verbose",
							Description: "Include notes in the audit file",
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Required:    false,
						},
					},
				},
			},
		},
		{
			Name:                     "vlog",
			Description:              "Manage verification logs",
			DefaultMemberPermissions: &manageRoles,
			DMPermission:             &dmFalse,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "update",
					Description: "Post a fresh verification summary to the configured channel",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name:        "view",
					Description: "View recent verification logs",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "limit",
							Description: "Number of recent logs to show (default: 10)",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    false,
							MinValue:    &minLimit,
							MaxValue:    maxLimit,
						},
					},
				},
				{
					Name:        "stats",
					Description: "Show verification statistics for this server",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
	}
}
