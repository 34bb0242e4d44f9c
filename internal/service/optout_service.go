package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/metrics"
	"github.com/popeskul/wa-dispatcher/internal/phone"
	"github.com/popeskul/wa-dispatcher/internal/repository"
)

type optOutService struct {
	repo     repository.Repository
	keywords map[string]struct{}
	logger   *zap.Logger
}

func NewOptOutService(repo repository.Repository, keywords []string, logger *zap.Logger) OptOutService {
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		if k = normalizeKeyword(k); k != "" {
			set[k] = struct{}{}
		}
	}
	return &optOutService{
		repo:     repo,
		keywords: set,
		logger:   logger,
	}
}

// Process unsubscribes the sender from the instance owner's contacts when the
// whole message is an opt-out keyword. It reports whether it did.
func (s *optOutService) Process(ctx context.Context, input *OptOutInput) (bool, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(input.Instance) == "" {
		verr.Add("instance", "is required")
	}
	sender, err := phone.FromJID(input.Sender)
	if err != nil {
		verr.Add("sender", err.Error())
	}
	if !verr.Empty() {
		return false, verr
	}

	keyword := normalizeKeyword(input.Message)
	if _, ok := s.keywords[keyword]; !ok {
		return false, nil
	}

	instance, err := s.repo.Instance().GetByName(ctx, strings.TrimSpace(input.Instance))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrInstanceNotFound
		}
		return false, fmt.Errorf("failed to get instance: %w", err)
	}

	if err := s.repo.Contact().Unsubscribe(ctx, instance.OwnerID, sender, keyword); err != nil {
		return false, fmt.Errorf("failed to unsubscribe contact: %w", err)
	}

	metrics.OptOuts.Inc()
	s.logger.Info("Contact unsubscribed",
		zap.String("owner_id", instance.OwnerID.String()),
		zap.String("phone", sender),
		zap.String("keyword", keyword),
	)

	return true, nil
}

func normalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
