package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/tbourn/go-movie-info/internal/domain"
	httpapi "github.com/tbourn/go-movie-info/internal/http"
)

// fixtureFile is the YAML layout read by "movieinfo seed".
//
//	movieInfos:
//	  - id: TDR
//	    title: The Dark Knight Rises
//	    year: 2012
//	    cast: [Christian Bale, Michael Cane]
//	    releaseDate: 2012-07-20
type fixtureFile struct {
	MovieInfos []fixture `yaml:"movieInfos"`
}

type fixture struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Year        int      `yaml:"year"`
	Cast        []string `yaml:"cast"`
	ReleaseDate string   `yaml:"releaseDate"`
}

type seedOptions struct {
	file  string
	reset bool
}

func newSeedCmd() *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load movie-info records from a YAML file",
		Long: `Reads records from a YAML fixture file and saves them in one transaction.
Records with an existing id are replaced; --reset removes every record first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "fixtures/movie_infos.yaml", "fixture file")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "delete all records before seeding")
	return cmd
}

func runSeed(cmd *cobra.Command, opts *seedOptions) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := loadFixtures(f)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.file, err)
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeDB(db)

	ctx := cmd.Context()
	svc := httpapi.NewMovieInfoService(db)
	if opts.reset {
		if err := svc.DeleteAll(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	saved, err := svc.SaveAll(ctx, records)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	log.Info().Int("records", len(saved)).Str("file", opts.file).Bool("reset", opts.reset).Msg("seeded")
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d movie infos\n", len(saved))
	return nil
}

// loadFixtures decodes a fixture file. Unknown keys and malformed dates are
// rejected; an empty document yields no records.
func loadFixtures(r io.Reader) ([]domain.MovieInfo, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var ff fixtureFile
	if err := dec.Decode(&ff); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]domain.MovieInfo, 0, len(ff.MovieInfos))
	for i, fx := range ff.MovieInfos {
		var rd domain.Date
		if fx.ReleaseDate != "" {
			d, err := domain.ParseDate(fx.ReleaseDate)
			if err != nil {
				return nil, fmt.Errorf("movieInfos[%d].releaseDate: %w", i, err)
			}
			rd = d
		}
		out = append(out, domain.MovieInfo{
			ID:          fx.ID,
			Title:       fx.Title,
			Year:        fx.Year,
			Cast:        datatypes.JSONSlice[string](fx.Cast),
			ReleaseDate: rd,
		})
	}
	return out, nil
}
