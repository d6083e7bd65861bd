// Package replyclass maps raw inbound reply text to a reply type using
// case-insensitive keyword matching with a fixed category precedence.
//
// This is deliberately a keyword heuristic, not a scoring model: the keyword
// lists are the full algorithm, and upgrading to anything smarter would
// change observable behavior for existing threads.
package replyclass

import (
	"strings"

	"github.com/showscout/outreach/internal/domain"
)

// Categories are checked in this order; the first match wins. Positive
// phrasing is checked before negative so "yes, let's do it, I was worried
// you wouldn't ask" books rather than bounces on "wouldn't".
var categories = []struct {
	reply    domain.ReplyType
	keywords []string
}{
	{domain.ReplyPositive, []string{
		"sounds great",
		"sounds good",
		"would love to",
		"love to have you",
		"happy to have you",
		"let's schedule",
		"lets schedule",
		"let's book",
		"send me your availability",
		"here's my calendar",
		"here is my calendar",
		"calendly.com",
		"yes, let's",
		"count me in",
		"we'd be delighted",
	}},
	{domain.ReplyNegative, []string{
		"not interested",
		"no thanks",
		"no thank you",
		"remove me",
		"unsubscribe",
		"do not contact",
		"don't contact",
		"stop emailing",
		"not a fit",
		"not a good fit",
		"we'll pass",
		"we will pass",
		"going to pass",
		"hard pass",
	}},
	{domain.ReplyNotNow, []string{
		"not right now",
		"not at this time",
		"maybe later",
		"circle back",
		"check back",
		"next quarter",
		"next season",
		"on hiatus",
		"fully booked",
		"booked out",
		"try again in",
	}},
	{domain.ReplyNeedsTopics, []string{
		"what topics",
		"which topics",
		"talking points",
		"what would you like to discuss",
		"what would you talk about",
		"topic ideas",
		"proposed topics",
	}},
	{domain.ReplyNeedsMediaKit, []string{
		"media kit",
		"press kit",
		"one sheet",
		"one-sheet",
		"speaker sheet",
		"bio and headshot",
		"previous appearances",
		"past episodes you've been on",
	}},
	{domain.ReplyPaidOnly, []string{
		"sponsorship",
		"paid placement",
		"placement fee",
		"booking fee",
		"we charge",
		"there is a fee",
		"there's a fee",
		"paid guest",
		"pay to play",
		"rate card",
	}},
}

// Classify maps inbound text to a reply type. Unmatched text is neutral;
// a neutral reply still stops automated follow-ups downstream.
func Classify(text string) domain.ReplyType {
	lower := strings.ToLower(text)
	for _, cat := range categories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.reply
			}
		}
	}
	return domain.ReplyNeutral
}

// OutcomeFor returns the fixed outcome mapping for a classified reply:
// positive books (tentatively), negative declines and suppresses, everything
// else stays open pending human follow-up.
func OutcomeFor(rt domain.ReplyType) (outcome domain.Outcome, suppress bool) {
	switch rt {
	case domain.ReplyPositive:
		return domain.OutcomeBooked, false
	case domain.ReplyNegative:
		return domain.OutcomeDeclined, true
	default:
		return domain.OutcomeOpen, false
	}
}
