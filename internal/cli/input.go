package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mmcdole/kinomark/internal/domain"
	"github.com/spf13/cobra"
)

// MovieInput describes a movie record given on the command line.
type MovieInput struct {
	JSONFile    string
	ID          int
	Title       string
	Overview    string
	ReleaseDate string
	Rating      float64
	Language    string
}

func (in *MovieInput) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&in.JSONFile, "json", "", "Read the movie record(s) from a JSON file, or - for stdin")
	f.IntVar(&in.ID, "id", 0, "Movie id")
	f.StringVar(&in.Title, "title", "", "Movie title")
	f.StringVar(&in.Overview, "overview", "", "Short synopsis")
	f.StringVar(&in.ReleaseDate, "release-date", "", "Release date (YYYY-MM-DD)")
	f.Float64Var(&in.Rating, "rating", 0, "Average vote, 0-10")
	f.StringVar(&in.Language, "language", "", "Original language code")
	cmd.MarkFlagsMutuallyExclusive("json", "id")
	cmd.MarkFlagsOneRequired("json", "id")
}

// Movies returns the records described by the flags
func (in *MovieInput) Movies(cmd *cobra.Command) ([]domain.Movie, error) {
	if in.JSONFile != "" {
		data, err := in.read(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return decodeMovies(data)
	}

	fields := map[string]any{}
	if in.Title != "" {
		fields["title"] = in.Title
	}
	if in.Overview != "" {
		fields["overview"] = in.Overview
	}
	if in.ReleaseDate != "" {
		fields["release_date"] = in.ReleaseDate
	}
	if cmd.Flags().Changed("rating") {
		fields["vote_average"] = in.Rating
	}
	if in.Language != "" {
		fields["original_language"] = in.Language
	}

	m, err := domain.NewMovie(in.ID, fields)
	if err != nil {
		return nil, err
	}
	return []domain.Movie{m}, nil
}

func (in *MovieInput) read(stdin io.Reader) ([]byte, error) {
	if in.JSONFile == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(in.JSONFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", in.JSONFile, err)
	}
	return data, nil
}

// decodeMovies accepts a single movie object or an array of them
func decodeMovies(data []byte) ([]domain.Movie, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("no movie record given")
	}

	if data[0] == '[' {
		var movies []domain.Movie
		if err := json.Unmarshal(data, &movies); err != nil {
			return nil, fmt.Errorf("invalid movie records: %w", err)
		}
		if len(movies) == 0 {
			return nil, errors.New("no movie record given")
		}
		return movies, nil
	}

	var m domain.Movie
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid movie record: %w", err)
	}
	return []domain.Movie{m}, nil
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
