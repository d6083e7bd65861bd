package domain

import "time"

// CampaignView is a denormalized projection of a prospect for dashboard
// consumption. It is never authoritative: every field is re-derivable from
// the Prospect and its Touches, and no lifecycle invariant reads it.
type CampaignView struct {
	ProspectID   string     `json:"prospect_id"`
	ShowName     string     `json:"show_name"`
	Tier         Tier       `json:"tier"`
	Status       Status     `json:"status"`
	NextAction   NextAction `json:"next_action"`
	NextDue      *time.Time `json:"next_due"`
	Outcome      Outcome    `json:"outcome"`
	TouchCount   int        `json:"touch_count"`
	LastTouchAt  *time.Time `json:"last_touch_at"`
	LastOpened   bool       `json:"last_opened"`
	ReplyType    *ReplyType `json:"reply_type"`
	DaysInFlight int        `json:"days_in_flight"`
}

// BuildCampaignView derives the dashboard projection from a prospect and its
// touch history (sentAt descending).
func BuildCampaignView(p *Prospect, touches []Touch, now time.Time) CampaignView {
	v := CampaignView{
		ProspectID: p.ID,
		ShowName:   p.Name,
		Tier:       p.Tier,
		Status:     p.Status,
		NextAction: p.NextAction,
		NextDue:    p.NextActionDate,
		Outcome:    p.Outcome,
		TouchCount: len(touches),
		ReplyType:  p.ReplyType,
	}
	if last := LatestTouch(touches); last != nil {
		t := last.SentAt
		v.LastTouchAt = &t
		v.LastOpened = last.Opened
	}
	if p.SentPrimaryAt != nil {
		v.DaysInFlight = int(now.Sub(*p.SentPrimaryAt).Hours() / 24)
	}
	return v
}
