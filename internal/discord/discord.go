package discord

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
}

type SelectOption struct {
	Label       string
	Value       string
	Description string
}

type SelectMenu struct {
	CustomID    string
	Placeholder string
	Options     []SelectOption
}

// ActionRow holds either buttons or a single select menu.
type ActionRow struct {
	Buttons []Button
	Select  *SelectMenu
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title         string
	Description   string
	Color         int
	Fields        []EmbedField
	Footer        string
	AuthorName    string
	AuthorIconURL string
	ImageURL      string
	ThumbnailURL  string
	Timestamp     time.Time
}

type Message struct {
	Content    string
	Embeds     []Embed
	Components []ActionRow
	Ephemeral  bool

	// AllowedRoleMentions limits which role mentions in Content actually ping.
	AllowedRoleMentions []string
}

type TextInputStyle int

const (
	TextInputShort TextInputStyle = iota + 1
	TextInputParagraph
)

type TextInput struct {
	CustomID    string
	Label       string
	Placeholder string
	Style       TextInputStyle
	Required    bool
	MaxLength   int
}

type Modal struct {
	CustomID string
	Title    string
	Inputs   []TextInput
}

type FileMessage struct {
	ChannelID string
	Content   string
	Filename  string
	FileBody  []byte
}

// Interaction is the reply surface of one inbound interaction.
type Interaction interface {
	Reply(msg Message) error
	Defer(ephemeral bool) error
	EditReply(msg Message) error
	FollowUp(msg Message) error
	// Update replaces the message the component was attached to.
	Update(msg Message) error
	ShowModal(modal Modal) error
	Responded() bool
}

type MessageEvent struct {
	GuildID         string
	ChannelID       string
	ParentChannelID string
	MessageID       string
	AuthorID        string
	AuthorIsBot     bool
	AuthorRoleIDs   []string
	Content         string
	MentionsBot     bool
	AttachmentURLs  []string
}

type ComponentEvent struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	UserID      string
	UserRoleIDs []string
	CustomID    string
	Values      []string
	Interaction Interaction
}

type ModalSubmitEvent struct {
	GuildID     string
	ChannelID   string
	UserID      string
	CustomID    string
	Fields      map[string]string
	Interaction Interaction
}

type SlashCommandEvent struct {
	GuildID       string
	ChannelID     string
	CommandName   string
	UserID        string
	UserName      string
	UserAvatarURL string
	UserRoleIDs   []string
	Options       map[string]string
	Interaction   Interaction
}

type Member struct {
	UserID      string
	Username    string
	DisplayName string
	IsBot       bool
	RoleIDs     []string
}

type MemberEvent struct {
	GuildID string
	Member  Member
}

type SlashCommandChoice struct {
	Name  string
	Value string
}

type SlashCommandOption struct {
	Name        string
	Description string
	Required    bool
	Choices     []SlashCommandChoice
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	Options     []SlashCommandOption
}

type Webhook struct {
	ID        string
	Token     string
	ChannelID string
	Name      string
}

type WebhookMessage struct {
	Username  string
	AvatarURL string
	Embeds    []Embed
}

type ChannelMessage struct {
	ID        string
	ChannelID string
	WebhookID string
	Embeds    []Embed
}

// Known Discord JSON error codes.
const (
	CodeUnknownUser       = 10013
	CodeMissingAccess     = 50001
	CodeCannotMessageUser = 50007
)

// APIError is a REST failure carrying Discord's JSON error code.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api error: status=%d code=%d message=%s", e.HTTPStatus, e.Code, e.Message)
}

// ErrorCode returns the Discord JSON error code of err, or 0.
func ErrorCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Run() error
	GetBotUserID() (string, error)

	SendChannelMessage(channelID string, msg Message) (string, error)
	SendChannelMessageWithFile(msg FileMessage) error
	SendDirectMessage(userID string, msg Message) error
	GetMessage(channelID, messageID string) (ChannelMessage, error)
	DeleteMessage(channelID, messageID string) error
	ResolveChannelName(channelID string) string
	IsGuildMember(guildID, userID string) bool
	ListGuildMembers(ctx context.Context, guildID string) ([]Member, error)
	UpdateWatchingStatus(text string) error

	ChannelWebhooks(channelID string) ([]Webhook, error)
	CreateWebhook(channelID, name, avatarURL string) (Webhook, error)
	ExecuteWebhook(hook Webhook, msg WebhookMessage) error

	RegisterMessageHandler(handler func(MessageEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	RegisterComponentHandler(handler func(ComponentEvent))
	RegisterModalSubmitHandler(handler func(ModalSubmitEvent))
	RegisterMemberHandler(handler func(MemberEvent))
	UpsertGuildSlashCommands(guildID string, defs []SlashCommandDefinition) error
}
