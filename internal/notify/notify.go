package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMissingDiscordID = errors.New("discord_id missing")

const (
	valueMissing = "—"
	valueNone    = "なし"
)

// requestTypes translates the request_name sent by the administration site.
var requestTypes = map[string]string{
	"registry_update":       "国民登記情報修正申請",
	"business_filing":       "開業・廃業届",
	"staff_appointment":     "職員登用申請",
	"donation_report":       "寄付申告",
	"party_membership":      "入党・離党届",
	"party_create_dissolve": "結党・解党届",
	"citizen_recommend":     "新規国民推薦届",
	"citizen_denunciation":  "脱退申告",
	"anonymous_report":      "匿名通報",
}

// Request is a decision notice posted by the administration site.
type Request struct {
	DiscordID        string
	RequestID        string
	RequestName      string
	CreatedAt        string
	Department       string
	DecisionEvent    string
	DecisionDatetime string
	Notice           string
	Content          string
}

// ParseRequest reads a notice body. Each field accepts several key spellings; the first
// key present wins even when its value is empty.
func ParseRequest(body map[string]any) (Request, error) {
	r := Request{
		DiscordID:        strings.TrimSpace(pick(body, "", "discord_id", "discordId", "discord")),
		RequestID:        pick(body, valueMissing, "request_id", "requestId"),
		RequestName:      strings.TrimSpace(pick(body, "", "request_name", "requestName")),
		CreatedAt:        pick(body, valueMissing, "created_at", "createdAt"),
		Department:       pick(body, valueMissing, "department", "dept"),
		DecisionEvent:    pick(body, valueMissing, "decision_event", "decisionEvent"),
		DecisionDatetime: pick(body, valueMissing, "decision_datetime", "decisionDatetime", "decision_event_datetime"),
		Notice:           orNone(pick(body, "", "notice", "memo")),
		Content:          orNone(pick(body, "", "request_content", "requestContent", "payload")),
	}
	if r.DiscordID == "" {
		return r, ErrMissingDiscordID
	}
	return r, nil
}

func pick(body map[string]any, fallback string, keys ...string) string {
	for _, k := range keys {
		v, ok := body[k]
		if !ok || v == nil {
			continue
		}
		return stringify(v)
	}
	return fallback
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return fmt.Sprintf("%v", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return valueNone
	}
	return s
}

// TypeName returns the Japanese request type, the raw name when unmapped, or a dash.
func (r Request) TypeName() string {
	if name, ok := requestTypes[r.RequestName]; ok {
		return name
	}
	if r.RequestName != "" {
		return r.RequestName
	}
	return valueMissing
}

// Message renders the DM body.
func (r Request) Message() string {
	typeName := r.TypeName()
	return strings.Join([]string{
		"【重要】",
		"件名 : 審査結果通知のお知らせ",
		"申請先機関から通知結果が届いています。",
		"",
		"======================================",
		fmt.Sprintf("さきに申請のあった%s（到達番号：%s、作成日時：%s）について、以下のとおり%sされました。", typeName, r.RequestID, r.CreatedAt, r.DecisionEvent),
		"",
		"《申請内容》",
		"申請種類：" + typeName,
		"申請到達日時：" + r.CreatedAt,
		"申請内容：" + r.Content,
		"",
		"《決裁情報》",
		"決裁部門：" + r.Department,
		"決裁日時：" + r.DecisionDatetime,
		"担当者：（非開示）",
		"備考：" + r.Notice,
		"",
		"-# 📢 このメッセージは、仮想国家コミュニティ《コムザール連邦共和国》が管理運営するコムザール行政システムによる自動通知です。",
	}, "\n")
}
