package replyclass

import (
	"testing"

	"github.com/showscout/outreach/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want domain.ReplyType
	}{
		{"Sounds great, send me your availability!", domain.ReplyPositive},
		{"We'd be delighted to have you on.", domain.ReplyPositive},
		{"Here's my calendar: https://calendly.com/host/30min", domain.ReplyPositive},

		{"Not interested, please remove me", domain.ReplyNegative},
		{"No thanks.", domain.ReplyNegative},
		{"Please UNSUBSCRIBE me from this list", domain.ReplyNegative},
		{"Thanks but this is not a good fit for our audience", domain.ReplyNegative},

		{"We're fully booked this season, circle back in the fall", domain.ReplyNotNow},
		{"Not at this time, maybe later", domain.ReplyNotNow},

		{"What topics would you want to cover?", domain.ReplyNeedsTopics},
		{"Can you send over some talking points?", domain.ReplyNeedsTopics},

		{"Do you have a media kit?", domain.ReplyNeedsMediaKit},
		{"Please send your one-sheet and bio and headshot", domain.ReplyNeedsMediaKit},

		{"We charge a booking fee for guest spots", domain.ReplyPaidOnly},
		{"Guest slots are part of our sponsorship packages, here's the rate card", domain.ReplyPaidOnly},

		{"Thanks for reaching out, who are you again?", domain.ReplyNeutral},
		{"", domain.ReplyNeutral},
	}
	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestClassify_PrecedenceFirstMatchWins(t *testing.T) {
	// Mentions both a positive phrase and a paid-only phrase; positive is
	// checked first and wins.
	got := Classify("Sounds great! FYI we normally only do sponsorship slots.")
	if got != domain.ReplyPositive {
		t.Errorf("got %s, want positive (checked first)", got)
	}

	// Negative before not-now.
	got = Classify("Not interested right now and not at this time either")
	if got != domain.ReplyNegative {
		t.Errorf("got %s, want negative (checked before not_now)", got)
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	if got := Classify("NOT INTERESTED"); got != domain.ReplyNegative {
		t.Errorf("got %s, want negative regardless of case", got)
	}
}

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		reply        domain.ReplyType
		wantOutcome  domain.Outcome
		wantSuppress bool
	}{
		{domain.ReplyPositive, domain.OutcomeBooked, false},
		{domain.ReplyNegative, domain.OutcomeDeclined, true},
		{domain.ReplyNotNow, domain.OutcomeOpen, false},
		{domain.ReplyNeedsTopics, domain.OutcomeOpen, false},
		{domain.ReplyNeedsMediaKit, domain.OutcomeOpen, false},
		{domain.ReplyPaidOnly, domain.OutcomeOpen, false},
		{domain.ReplyNeutral, domain.OutcomeOpen, false},
	}
	for _, tt := range tests {
		outcome, suppress := OutcomeFor(tt.reply)
		if outcome != tt.wantOutcome || suppress != tt.wantSuppress {
			t.Errorf("OutcomeFor(%s) = %s/%v, want %s/%v",
				tt.reply, outcome, suppress, tt.wantOutcome, tt.wantSuppress)
		}
	}
}
