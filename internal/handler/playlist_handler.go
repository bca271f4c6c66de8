package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tanishtirpathi/Playlistr/internal/apperrors"
	"github.com/tanishtirpathi/Playlistr/internal/models"
	"github.com/tanishtirpathi/Playlistr/internal/service"
)

type PlaylistHandler struct {
	svc *service.PlaylistService
}

func NewPlaylistHandler(s *service.PlaylistService) *PlaylistHandler {
	return &PlaylistHandler{svc: s}
}

// queryInt parses an integer query parameter, returning def when it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validation(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

type createPlaylistRequest struct {
	Title       string   `json:"title"`
	SpotifyID   string   `json:"spotifyId"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	IsPublic    *bool    `json:"isPublic"`
}

// @Summary Create playlist
// @Description The owner is always the authenticated user.
// @Tags playlists
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body createPlaylistRequest true "playlist"
// @Success 201 {object} envelope{data=models.PlaylistView}
// @Failure 400 {object} envelope
// @Failure 401 {object} envelope
// @Router /api/playlists/create [post]
func (h *PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.svc.Create(r.Context(), UserFromContext(r.Context()), service.CreatePlaylistData{
		Title:       req.Title,
		SpotifyID:   req.SpotifyID,
		Description: req.Description,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Playlist created successfully", p)
}

// @Summary Delete playlist
// @Tags playlists
// @Security BearerAuth
// @Produce json
// @Param id path string true "playlist id"
// @Success 200 {object} envelope
// @Failure 403 {object} envelope
// @Failure 404 {object} envelope
// @Router /api/playlists/delete/{id} [delete]
func (h *PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Delete(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Playlist deleted successfully", nil)
}

// @Summary List playlists
// @Description Public playlists plus the caller's own, paginated.
// @Tags playlists
// @Security BearerAuth
// @Produce json
// @Param page query int false "page (default 1)"
// @Param limit query int false "page size (default 10, max 100)"
// @Param sortBy query string false "createdAt|title|like|dislike"
// @Param order query string false "asc|desc (default desc)"
// @Success 200 {object} envelope{data=models.PlaylistPage}
// @Failure 400 {object} envelope
// @Router /api/playlists/all [get]
func (h *PlaylistHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", service.DefaultPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultPageLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	result, err := h.svc.List(r.Context(), userIDFromContext(r.Context()), service.ListParams{
		Page:   page,
		Limit:  limit,
		SortBy: q.Get("sortBy"),
		Order:  q.Get("order"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Playlists fetched successfully", result)
}

// @Summary Top playlists
// @Tags playlists
// @Produce json
// @Param minLikes query int false "minimum likes (default 10)"
// @Param limit query int false "max results (default 20, max 100)"
// @Success 200 {object} envelope{data=models.TopPlaylists}
// @Failure 400 {object} envelope
// @Router /api/playlists/top [get]
func (h *PlaylistHandler) Top(w http.ResponseWriter, r *http.Request) {
	minLikes, err := queryInt(r, "minLikes", service.DefaultTopMinLikes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultTopLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	top, err := h.svc.Top(r.Context(), minLikes, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Top playlists fetched successfully", top)
}

// @Summary Get playlist
// @Description Private playlists are only visible to their owner.
// @Tags playlists
// @Produce json
// @Param id path string true "playlist id"
// @Success 200 {object} envelope{data=models.PlaylistView}
// @Failure 404 {object} envelope
// @Router /api/playlists/{id} [get]
func (h *PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Playlist fetched successfully", p)
}

type addSongRequest struct {
	SpotifyID  string `json:"spotifyId"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	Duration   int    `json:"duration"`
	PreviewURL string `json:"previewUrl"`
	AlbumArt   string `json:"albumArt"`
}

// @Summary Add song
// @Description With only spotifyId, metadata is looked up on Spotify.
// @Tags playlists
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "playlist id"
// @Param body body addSongRequest true "song"
// @Success 200 {object} envelope{data=models.PlaylistView}
// @Failure 400 {object} envelope
// @Failure 403 {object} envelope
// @Failure 409 {object} envelope
// @Router /api/playlists/{id}/add-song [post]
func (h *PlaylistHandler) AddSong(w http.ResponseWriter, r *http.Request) {
	var req addSongRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.svc.AddSong(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"), service.AddSongData{
		SpotifyID:  req.SpotifyID,
		Name:       req.Name,
		Artist:     req.Artist,
		Album:      req.Album,
		Duration:   req.Duration,
		PreviewURL: req.PreviewURL,
		AlbumArt:   req.AlbumArt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Song added successfully", p)
}

// @Summary Remove song
// @Tags playlists
// @Security BearerAuth
// @Produce json
// @Param id path string true "playlist id"
// @Param songId path string true "spotify id of the song"
// @Success 200 {object} envelope{data=models.PlaylistView}
// @Failure 403 {object} envelope
// @Failure 404 {object} envelope
// @Router /api/playlists/{id}/remove-song/{songId} [delete]
func (h *PlaylistHandler) RemoveSong(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.RemoveSong(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "songId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Song removed successfully", p)
}

// @Summary Vote on playlist
// @Description Toggles the caller's like or dislike. A vote in the other direction replaces the existing one.
// @Tags playlists
// @Security BearerAuth
// @Produce json
// @Param id path string true "playlist id"
// @Success 200 {object} envelope{data=models.PlaylistView}
// @Failure 404 {object} envelope
// @Router /api/playlists/{id}/like [post]
// @Router /api/playlists/{id}/dislike [post]
func (h *PlaylistHandler) Vote(w http.ResponseWriter, r *http.Request) {
	d, err := models.ParseVoteDirection(chi.URLParam(r, "direction"))
	if err != nil {
		writeError(w, r, apperrors.NotFound("Route not found"))
		return
	}

	p, err := h.svc.Vote(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Vote updated", p)
}
