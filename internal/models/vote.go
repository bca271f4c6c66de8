package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type VoteDirection string

const (
	VoteLike    VoteDirection = "like"
	VoteDislike VoteDirection = "dislike"
)

func ParseVoteDirection(s string) (VoteDirection, error) {
	switch VoteDirection(s) {
	case VoteLike, VoteDislike:
		return VoteDirection(s), nil
	}
	return "", fmt.Errorf("invalid vote direction %q", s)
}

// VoteOutcome describes what a toggle did to the caller's vote.
type VoteOutcome string

const (
	VoteAdded     VoteOutcome = "added"
	VoteRetracted VoteOutcome = "retracted"
	VoteSwitched  VoteOutcome = "switched"
)

// ApplyVote toggles userID's vote in direction d. A repeated vote in the same
// direction retracts it; a vote in the other direction moves the user across.
// Counters are recomputed from the sets, so they can never drift below zero.
// The Mongo store runs the same transition as a single pipeline update.
func (p *Playlist) ApplyVote(userID primitive.ObjectID, d VoteDirection) VoteOutcome {
	same, opposite := &p.LikedBy, &p.DislikedBy
	if d == VoteDislike {
		same, opposite = opposite, same
	}

	var outcome VoteOutcome
	switch p.voteOf(userID) {
	case d:
		*same = removeID(*same, userID)
		outcome = VoteRetracted
	case "":
		*same = append(*same, userID)
		outcome = VoteAdded
	default:
		*same = append(*same, userID)
		*opposite = removeID(*opposite, userID)
		outcome = VoteSwitched
	}

	p.Like = len(p.LikedBy)
	p.Dislike = len(p.DislikedBy)
	return outcome
}

// voteOf returns the user's current vote, or "" when there is none.
func (p *Playlist) voteOf(userID primitive.ObjectID) VoteDirection {
	switch {
	case containsID(p.LikedBy, userID):
		return VoteLike
	case containsID(p.DislikedBy, userID):
		return VoteDislike
	}
	return ""
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
