package detect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/common/config"
	"github.com/claimsight-ai/platform/pkg/common/logger"
)

// LoadInputs reads the configured dataset files. Pharmacy and medical
// load concurrently; the joined dataset is read from disk when the
// vendor ships one and otherwise derived from the other two. Optional
// files that are absent simply leave their slot nil.
func LoadInputs(ctx context.Context, cfg *config.Config) (Inputs, error) {
	provider := claims.NewCSVProvider(cfg.DataDir, map[claims.Source]string{
		claims.SourcePharmacy: cfg.PharmacyFile,
		claims.SourceMedical:  cfg.MedicalFile,
		claims.SourceJoined:   cfg.JoinedFile,
	})

	var (
		wg       sync.WaitGroup
		pharmacy *claims.Dataset
		medical  *claims.Dataset
		pharmErr error
		medErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		pharmacy, pharmErr = provider.Load(ctx, claims.SourcePharmacy)
	}()
	go func() {
		defer wg.Done()
		medical, medErr = provider.Load(ctx, claims.SourceMedical)
	}()
	wg.Wait()

	if pharmErr != nil {
		return Inputs{}, fmt.Errorf("load pharmacy dataset: %w", pharmErr)
	}
	if medErr != nil {
		logger.WithField("error", medErr.Error()).Warn("medical dataset unavailable, continuing without it")
		medical = nil
	}

	in := Inputs{Pharmacy: pharmacy, Medical: medical}

	joined, err := provider.Load(ctx, claims.SourceJoined)
	if err == nil {
		in.Joined = joined
	} else if medical != nil {
		logger.WithField("error", err.Error()).Info("joined dataset not shipped, deriving from pharmacy and medical")
		in.Joined = claims.BuildJoined(pharmacy, medical)
	}

	if cfg.RevisionFile != "" {
		revision, err := loadRevision(ctx, cfg.DataDir, cfg.RevisionFile)
		if err != nil {
			logger.WithField("error", err.Error()).Warn("revision dataset unavailable, skipping revision delta checks")
		} else {
			in.Revision = revision
		}
	}

	return in, nil
}

// loadRevision reads an earlier pharmacy vendor cut.
func loadRevision(ctx context.Context, dir, name string) (*claims.Dataset, error) {
	file, err := os.Open(filepath.Join(dir, filepath.Clean(name)))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return claims.ReadDataset(ctx, claims.SourcePharmacy, file)
}
