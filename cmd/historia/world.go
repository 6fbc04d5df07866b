package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"openhistoria/internal/worlddata"
)

func worldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "world",
		Short: "Inspect the world data files",
	}
	cmd.AddCommand(worldValidateCmd())
	return cmd
}

func worldValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check world files against their schemas and each other",
		Args:  cobra.NoArgs,
		RunE:  runWorldValidate,
	}
}

func runWorldValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	res, err := worlddata.Load(cfg.World.Paths, cfg.World.Exclude, cfg.Game.StartYear)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d files (%d skipped): %d nations, %d provinces, %d relations.\n",
		res.FilesLoaded, res.FilesSkipped, len(res.State.Nations), len(res.State.Provinces), len(res.State.Relations))

	report := worlddata.Check(res.State)
	var errorIssues, warnIssues []worlddata.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case worlddata.SeverityError:
			errorIssues = append(errorIssues, issue)
		case worlddata.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	if len(res.Errors) == 0 && len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintln(out, "No issues found.")
		return nil
	}

	if len(res.Errors) > 0 {
		fmt.Fprintf(out, "Invalid files (%d):\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(out, "  - %v\n", e)
		}
	}
	if len(errorIssues) > 0 {
		fmt.Fprintf(out, "Errors (%d):\n", len(errorIssues))
		printIssues(out, errorIssues)
	}
	if len(warnIssues) > 0 {
		fmt.Fprintf(out, "Warnings (%d):\n", len(warnIssues))
		printIssues(out, warnIssues)
	}

	if len(res.Errors) > 0 || len(errorIssues) > 0 {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printIssues(out io.Writer, issues []worlddata.Issue) {
	for _, issue := range issues {
		location := issue.Entity
		if location == "" {
			location = "world"
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Code)
	}
}
