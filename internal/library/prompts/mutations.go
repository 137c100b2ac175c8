package prompts

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrmushfiq/promptlib/internal/shared/database"
	"github.com/mrmushfiq/promptlib/internal/shared/models"
)

// load fetches a prompt from the repository, bypassing the cache, so
// ownership checks and invalidation see committed state.
func (s *Service) load(ctx context.Context, id int64) (*models.Prompt, error) {
	p, err := s.repo.GetPrompt(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *Service) loadVisible(ctx context.Context, id int64, userID string) (*models.Prompt, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsPublic && p.OwnerID != userID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) loadOwned(ctx context.Context, id int64, userID string) (*models.Prompt, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userID {
		if !p.IsPublic {
			return nil, ErrNotFound
		}
		return nil, ErrForbidden
	}
	return p, nil
}

// Create stores a new prompt owned by userID.
func (s *Service) Create(ctx context.Context, userID string, in Input) (*models.Prompt, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	p := &models.Prompt{
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		CategoryID:  in.CategoryID,
		Tags:        in.Tags,
		OwnerID:     userID,
		IsPublic:    in.IsPublic == nil || *in.IsPublic,
	}
	if err := s.repo.InsertPrompt(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create prompt: %w", err)
	}

	s.graph.OnPromptCreated(ctx, p.ID, p.OwnerID, p.CategoryID, p.Tags)
	s.logger.Info().Int64("prompt_id", p.ID).Str("owner_id", userID).Msg("prompt created")
	return p, nil
}

// Update replaces the editable fields of a prompt owned by userID.
func (s *Service) Update(ctx context.Context, userID string, id int64, in Input) (*models.Prompt, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	existing, err := s.loadOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	oldCategory, oldTags := existing.CategoryID, existing.Tags

	updated := *existing
	updated.Title = in.Title
	updated.Description = in.Description
	updated.Content = in.Content
	updated.CategoryID = in.CategoryID
	updated.Tags = in.Tags
	if in.IsPublic != nil {
		updated.IsPublic = *in.IsPublic
	}

	if err := s.repo.UpdatePrompt(ctx, &updated); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update prompt %d: %w", id, err)
	}

	s.graph.OnPromptUpdated(ctx, id, userID, oldCategory, updated.CategoryID, oldTags, updated.Tags)
	return &updated, nil
}

// Delete removes a prompt owned by userID.
func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	existing, err := s.loadOwned(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.repo.DeletePrompt(ctx, id, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete prompt %d: %w", id, err)
	}

	s.graph.OnPromptDeleted(ctx, id, userID, existing.CategoryID, existing.Tags)
	s.logger.Info().Int64("prompt_id", id).Str("owner_id", userID).Msg("prompt deleted")
	return nil
}

// Fork copies a visible prompt into a new prompt owned by userID.
func (s *Service) Fork(ctx context.Context, userID string, id int64) (*models.Prompt, error) {
	source, err := s.loadVisible(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	fork := &models.Prompt{
		Title:        source.Title,
		Description:  source.Description,
		Content:      source.Content,
		CategoryID:   source.CategoryID,
		Tags:         append([]string(nil), source.Tags...),
		OwnerID:      userID,
		ForkedFromID: &source.ID,
		IsPublic:     true,
	}
	if err := s.repo.InsertPrompt(ctx, fork); err != nil {
		return nil, fmt.Errorf("failed to fork prompt %d: %w", id, err)
	}
	if err := s.repo.IncrementForkCount(ctx, source.ID); err != nil {
		// the fork is committed; only the parent counter is stale
		s.logger.Error().Err(err).Int64("prompt_id", source.ID).Msg("failed to increment fork count")
	}

	s.graph.OnPromptForked(ctx, fork.ID, source.ID, userID, fork.CategoryID, fork.Tags)
	return fork, nil
}

// Vote sets userID's vote on a prompt: 1 up, -1 down, 0 to clear. It
// returns the prompt's new vote count.
func (s *Service) Vote(ctx context.Context, userID string, id int64, value int) (int, error) {
	if value < -1 || value > 1 {
		return 0, fmt.Errorf("%w: vote must be -1, 0 or 1", ErrInvalidInput)
	}
	if _, err := s.loadVisible(ctx, id, userID); err != nil {
		return 0, err
	}

	count, err := s.repo.SetVote(ctx, id, userID, value)
	if errors.Is(err, database.ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to vote on prompt %d: %w", id, err)
	}

	s.graph.OnVoteChanged(ctx, id, userID)
	return count, nil
}

// ToggleFavorite flips userID's favorite on a prompt and reports whether it
// is now a favorite.
func (s *Service) ToggleFavorite(ctx context.Context, userID string, id int64) (bool, error) {
	if _, err := s.loadVisible(ctx, id, userID); err != nil {
		return false, err
	}

	favorited, err := s.repo.ToggleFavorite(ctx, id, userID)
	if errors.Is(err, database.ErrNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite on prompt %d: %w", id, err)
	}

	s.graph.OnFavoriteToggled(ctx, id, userID)
	return favorited, nil
}
