package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	apperrors "github.com/arjun-vegeta/QuickPoll/internal/platform/errors"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// handleViewerSocket hands the connection to the WebSocket endpoint. Unknown
// poll IDs are reported over the socket, not as an HTTP error.
func (s *Server) handleViewerSocket(c echo.Context) error {
	pollID := roomKey(c.Param("id"))
	if err := s.endpoint.Serve(c.Response(), c.Request(), pollID, c.RealIP()); err != nil {
		// the upgrader has already written the response
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "poll_id", pollID, "error", err)
	}
	return nil
}

func (s *Server) handlePollState(c echo.Context) error {
	pollID, err := pollIDParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.SnapshotTimeout)
	defer cancel()

	snapshot, err := s.snapshots.GetSnapshot(ctx, pollID)
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		return apperrors.NotFoundError("poll not found").WithContext("poll_id", pollID)
	case errors.Is(err, circuitbreaker.ErrOpen), errors.Is(err, context.DeadlineExceeded):
		return apperrors.UnavailableError("poll store unavailable", err).WithContext("poll_id", pollID)
	case err != nil:
		return apperrors.InternalError("failed to load poll", err).WithContext("poll_id", pollID)
	}

	msg := domain.NewInitialData(*snapshot, s.viewers.ViewerCount(pollID))
	if err := c.JSON(http.StatusOK, msg); err != nil {
		return fmt.Errorf("failed to write poll state: %w", err)
	}
	return nil
}

func (s *Server) handleViewerCount(c echo.Context) error {
	pollID, err := pollIDParam(c)
	if err != nil {
		return err
	}

	response := map[string]any{
		"poll_id":      pollID,
		"viewer_count": s.viewers.ViewerCount(pollID),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write viewer count: %w", err)
	}
	return nil
}

func (s *Server) handleStats(c echo.Context) error {
	rooms, connections := s.viewers.Stats()
	response := map[string]int{
		"rooms":       rooms,
		"connections": connections,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}

func (s *Server) handleVoteRecorded(c echo.Context) error {
	var fact domain.VoteRecorded
	pollID, err := bindFact(c, &fact)
	if err != nil {
		return err
	}
	fact.PollID = pollID
	return relayResult(c, pollID, s.relay.PublishVoteRecorded(c.Request().Context(), fact))
}

func (s *Server) handleLikeToggled(c echo.Context) error {
	var fact domain.LikeToggled
	pollID, err := bindFact(c, &fact)
	if err != nil {
		return err
	}
	fact.PollID = pollID
	return relayResult(c, pollID, s.relay.PublishLikeToggled(c.Request().Context(), fact))
}

func (s *Server) handleCommentPosted(c echo.Context) error {
	var fact domain.CommentPosted
	pollID, err := bindFact(c, &fact)
	if err != nil {
		return err
	}
	fact.PollID = pollID
	return relayResult(c, pollID, s.relay.PublishCommentPosted(c.Request().Context(), fact))
}

// roomKey returns the canonical form of a UUID poll ID, the key facts are
// relayed under. Other IDs are returned unchanged.
func roomKey(raw string) string {
	if id, err := uuid.Parse(raw); err == nil {
		return id.String()
	}
	return raw
}

func pollIDParam(c echo.Context) (string, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperrors.ValidationError("invalid poll id", err).WithContext("poll_id", raw)
	}
	return id.String(), nil
}

// bindFact decodes the JSON body into fact. The poll ID always comes from the
// path.
func bindFact(c echo.Context, fact any) (string, error) {
	pollID, err := pollIDParam(c)
	if err != nil {
		return "", err
	}
	if err := c.Bind(fact); err != nil {
		return "", err
	}
	return pollID, nil
}

func relayResult(c echo.Context, pollID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidFact):
		return apperrors.ValidationError(err.Error(), err).WithContext("poll_id", pollID)
	case err != nil:
		return apperrors.InternalError("failed to relay fact", err).WithContext("poll_id", pollID)
	}
	if err := c.NoContent(http.StatusAccepted); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
