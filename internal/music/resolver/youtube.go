// Package resolver turns user input into playable tracks. The YouTube
// implementation resolves video and playlist URLs through the kkdai client
// and falls back to scraping the results page for title searches.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	youtube "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"sombra/internal/music/track"
)

var (
	watchURLPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

	ErrNoVideoMatch = errors.New("no video found for the given title")
	ErrNoAudio      = errors.New("no audio formats found for video")
)

// YouTube resolves tracks against YouTube.
type YouTube struct {
	client  *youtube.Client
	baseURL string
	http    *http.Client
	log     *zap.SugaredLogger
}

func NewYouTube(log *zap.SugaredLogger) *YouTube {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &YouTube{
		client: &youtube.Client{
			HTTPClient: &http.Client{Timeout: 15 * time.Second},
		},
		baseURL: "https://www.youtube.com",
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// ResolveTrack resolves a video URL, or the first search hit for a plain
// title query.
func (r *YouTube) ResolveTrack(ctx context.Context, urlOrQuery string) (*track.Track, error) {
	input := strings.TrimSpace(urlOrQuery)
	if !isURL(input) {
		found, err := r.searchFirstVideoURL(ctx, input)
		if err != nil {
			return nil, err
		}
		input = found
	}

	video, err := r.client.GetVideoContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve video: %w", err)
	}
	return trackFromVideo(video), nil
}

// ResolvePlaylist expands a playlist URL into tracks, capped at maxTracks
// when positive.
func (r *YouTube) ResolvePlaylist(ctx context.Context, playlistURL string, maxTracks int) ([]*track.Track, error) {
	playlist, err := r.client.GetPlaylistContext(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve playlist: %w", err)
	}

	tracks := make([]*track.Track, 0, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		if maxTracks > 0 && len(tracks) >= maxTracks {
			break
		}
		tracks = append(tracks, &track.Track{
			Title:     entry.Title,
			URL:       watchURL(entry.ID),
			Duration:  int(entry.Duration.Seconds()),
			Thumbnail: firstThumbnail(entry.Thumbnails),
			Artist:    entry.Author,
			Source:    track.SourceYouTube,
		})
	}
	return tracks, nil
}

// Search scrapes the results page for video IDs and resolves metadata for
// the first maxResults distinct hits.
func (r *YouTube) Search(ctx context.Context, query string, maxResults int) ([]*track.Track, error) {
	if maxResults < 1 {
		maxResults = 1
	}

	body, err := r.fetchSearchPage(ctx, query)
	if err != nil {
		return nil, err
	}

	matches := watchURLPattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{})
	var tracks []*track.Track
	for _, m := range matches {
		if len(tracks) >= maxResults {
			break
		}
		videoID := m[1]
		if _, dup := seen[videoID]; dup {
			continue
		}
		seen[videoID] = struct{}{}

		video, err := r.client.GetVideoContext(ctx, videoID)
		if err != nil {
			r.log.Debugf("[Resolver] Skipping search hit %s: %v", videoID, err)
			continue
		}
		tracks = append(tracks, trackFromVideo(video))
	}

	if len(tracks) == 0 {
		return nil, ErrNoVideoMatch
	}
	return tracks, nil
}

// GetStreamURL resolves the direct audio URL for a track, caching it on the
// track itself.
func (r *YouTube) GetStreamURL(ctx context.Context, t *track.Track) (string, error) {
	if t.StreamURL != "" {
		return t.StreamURL, nil
	}

	video, err := r.client.GetVideoContext(ctx, t.URL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch video: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", ErrNoAudio
	}

	streamURL, err := r.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return "", fmt.Errorf("failed to get stream URL: %w", err)
	}
	t.StreamURL = streamURL
	return streamURL, nil
}

func (r *YouTube) searchFirstVideoURL(ctx context.Context, query string) (string, error) {
	body, err := r.fetchSearchPage(ctx, query)
	if err != nil {
		return "", err
	}
	m := watchURLPattern.FindStringSubmatch(body)
	if len(m) < 2 {
		return "", ErrNoVideoMatch
	}
	return watchURL(m[1]), nil
}

func (r *YouTube) fetchSearchPage(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", r.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("YouTube search failed with status code %v", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func trackFromVideo(video *youtube.Video) *track.Track {
	return &track.Track{
		Title:     video.Title,
		URL:       watchURL(video.ID),
		Duration:  int(video.Duration.Seconds()),
		Thumbnail: firstThumbnail(video.Thumbnails),
		Artist:    video.Author,
		Source:    track.SourceYouTube,
	}
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func firstThumbnail(thumbs youtube.Thumbnails) string {
	if len(thumbs) == 0 {
		return ""
	}
	return thumbs[0].URL
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
