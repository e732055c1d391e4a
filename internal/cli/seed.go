package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexuslabs/nexus/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample people, credentials, and relationships",
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	people := store.NewPersonStore(db, cfg.Tags.Defaults)
	creds := store.NewCredentialStore(db)
	graph := store.NewRelationshipGraph(db)

	samples := []store.Person{
		{
			FirstName: "Ada", LastName: "Moreno",
			Email: "ada.moreno@example.com", Location: "Brooklyn, New York",
			University: "CMU", UniMajor: "Computer Science",
			FieldOfInterest: "Startups, Networking",
		},
		{
			FirstName: "Ben", LastName: "Okafor",
			Email: "ben.okafor@example.com", Location: "Pittsburgh, Pennsylvania",
			University: "CMU", JobTitle: "Analyst", CurrentCompany: "Meridian Capital",
			FieldOfInterest: "Investing, Real Estate",
		},
		{
			FirstName: "Clara", LastName: "Lindqvist",
			Email: "clara.lindqvist@example.com", Location: "NYC, New York",
			University: "Harvard", HighSchool: "Stuyvesant",
			FieldOfInterest: "Biotech",
		},
	}

	ids := make([]int64, 0, len(samples))
	for i := range samples {
		id, err := people.Create(&samples[i])
		if err != nil {
			return fmt.Errorf("seed person %s: %w", samples[i].Name(), err)
		}
		ids = append(ids, id)
		fmt.Fprintf(os.Stderr, "  person %d: %s\n", id, samples[i].Name())
	}

	logins := []struct {
		idx      int
		username string
	}{
		{0, "amoreno"},
		{1, "bokafor"},
	}
	for _, l := range logins {
		if err := creds.Add(ids[l.idx], l.username, "password"); err != nil {
			return fmt.Errorf("seed credential %s: %w", l.username, err)
		}
	}

	edges := []struct {
		owner, contact int
		label          string
		tags           []string
	}{
		{0, 1, "College Friend", []string{"school", "friend"}},
		{0, 2, "Networking Contact", []string{"work"}},
		{1, 0, "College Friend", nil},
	}
	for _, e := range edges {
		if _, err := graph.AddEdge(ids[e.owner], ids[e.contact], e.label, "", e.tags, ""); err != nil {
			return fmt.Errorf("seed edge %d -> %d: %w", ids[e.owner], ids[e.contact], err)
		}
	}

	fmt.Fprintf(os.Stderr, "seeded %d people, %d credentials, %d relationships\n",
		len(samples), len(logins), len(edges))
	return nil
}
