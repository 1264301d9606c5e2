package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pillarworks/storefront/pkg/seed"
	"github.com/pillarworks/storefront/services"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load pillars, services, FAQs and default content",
	Long: `Seeds the catalog from a YAML document. Pillars and services are matched
by slug and updated in place; FAQs are only inserted into an empty table and
content sections only where none is stored. Running it twice is safe.

Without --file the built-in document is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			doc *seed.Document
			err error
		)
		if seedFile != "" {
			doc, err = seed.LoadFile(seedFile)
		} else {
			doc, err = seed.Default()
		}
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		report, err := services.NewSeedService(db.Conn).Apply(cmd.Context(), doc)
		if err != nil {
			return err
		}
		log.Info("seed applied",
			zap.Int("pillars", report.Pillars),
			zap.Int("services", report.Services),
			zap.Int("faqs", report.Faqs),
			zap.Int("sections", report.Sections),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "pillars=%d services=%d faqs=%d sections=%d\n",
			report.Pillars, report.Services, report.Faqs, report.Sections)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML seed document")
}
