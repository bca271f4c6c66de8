package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MaxDescriptionLength = 300

// AllowedTags is the fixed tag enumeration a playlist can draw from.
var AllowedTags = []string{"pop", "rock", "hiphop", "jazz", "chill", "workout"}

func IsAllowedTag(tag string) bool {
	for _, t := range AllowedTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Song is embedded in a playlist and unique by SpotifyID within it.
type Song struct {
	SpotifyID  string    `json:"spotifyId" bson:"spotifyId"`
	Name       string    `json:"name" bson:"name"`
	Artist     string    `json:"artist" bson:"artist"`
	Album      string    `json:"album,omitempty" bson:"album,omitempty"`
	Duration   int       `json:"duration,omitempty" bson:"duration,omitempty"` // ms
	PreviewURL string    `json:"previewUrl,omitempty" bson:"previewUrl,omitempty"`
	AlbumArt   string    `json:"albumArt,omitempty" bson:"albumArt,omitempty"`
	AddedAt    time.Time `json:"addedAt" bson:"addedAt"`
}

// Playlist is the document stored in the playlists collection. Votes live
// inside the document: Like and Dislike always equal len(LikedBy) and
// len(DislikedBy).
type Playlist struct {
	ID          primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Title       string               `json:"title" bson:"title"`
	SpotifyID   string               `json:"spotifyId,omitempty" bson:"spotifyId,omitempty"`
	Owner       primitive.ObjectID   `json:"owner" bson:"owner"`
	CreatedAt   time.Time            `json:"createdAt" bson:"createdAt"`
	Tags        []string             `json:"tags" bson:"tags"`
	Description string               `json:"description,omitempty" bson:"description,omitempty"`
	Songs       []Song               `json:"songs" bson:"songs"`
	Like        int                  `json:"like" bson:"like"`
	Dislike     int                  `json:"dislike" bson:"dislike"`
	LikedBy     []primitive.ObjectID `json:"likedBy" bson:"likedBy"`
	DislikedBy  []primitive.ObjectID `json:"dislikedBy" bson:"dislikedBy"`
	IsPublic    bool                 `json:"isPublic" bson:"isPublic"`
}

func (p *Playlist) HasSong(spotifyID string) bool {
	for _, s := range p.Songs {
		if s.SpotifyID == spotifyID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether userID may read or vote on the playlist. A zero
// userID stands for an anonymous caller.
func (p *Playlist) VisibleTo(userID primitive.ObjectID) bool {
	return p.IsPublic || (!userID.IsZero() && p.Owner == userID)
}

// OwnerRef is the owner projection returned with every playlist.
type OwnerRef struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

// PlaylistView is a playlist with its owner resolved.
type PlaylistView struct {
	Playlist
	Owner OwnerRef `json:"owner"`
}

type Pagination struct {
	CurrentPage    int   `json:"currentPage"`
	TotalPages     int   `json:"totalPages"`
	TotalPlaylists int64 `json:"totalPlaylists"`
	Limit          int   `json:"limit"`
}

type PlaylistPage struct {
	Playlists  []PlaylistView `json:"playlists"`
	Pagination Pagination     `json:"pagination"`
}

type TopPlaylists struct {
	Playlists []PlaylistView `json:"playlists"`
	MinLikes  int            `json:"minLikes"`
	Count     int            `json:"count"`
}

// VoteEvent is published after every vote for live listeners.
type VoteEvent struct {
	PlaylistID string `json:"playlistId"`
	Like       int    `json:"like"`
	Dislike    int    `json:"dislike"`
}
