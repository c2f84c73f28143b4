package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/go-multierror"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/manifest"
	"github.com/spf13/cobra"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// ValidateFlags holds the command-line flags for the validate command
type ValidateFlags struct {
	Strict bool
}

// NewValidateCommand creates the validate command
func NewValidateCommand(container *CLIContainer) *cobra.Command {
	flags := &ValidateFlags{}

	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate the plugin metadata.txt",
		Long: `Validate the metadata.txt of a QGIS plugin source tree.

This command will:
- Check that all keys required by the QGIS plugin repository are present
- Check version and qgisMinimumVersion formats
- Check the category, homepage, tracker and repository values
- Report warnings for metadata the plugin manager treats as optional

Errors exit with code 2; warnings are informational unless --strict is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runValidate(container, dir, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Strict, "strict", false, "Treat warnings as errors")

	return cmd
}

// runValidate lints the manifest and prints the styled report
func runValidate(container *CLIContainer, dir string, flags *ValidateFlags) error {
	if dir == "" {
		dir = loadConfiguration(container).PluginDir
	}
	manifestPath := filepath.Join(dir, manifest.FileName)

	fmt.Println(titleStyle.Render("🔍 Validating " + manifestPath))
	fmt.Println("")

	m, err := manifest.Load(manifestPath)
	if err != nil {
		fmt.Printf("%s %v\n", errorStyle.Render("✗"), err)
		return fmt.Errorf("cannot read %s: %w", manifestPath, ErrValidationFailed)
	}

	validationErrors := flattenErrors(m.Validate())
	warnings := m.Warnings()

	for _, e := range validationErrors {
		fmt.Printf("%s %v\n", errorStyle.Render("✗"), e)
	}
	for _, w := range warnings {
		fmt.Printf("%s %s\n", warningStyle.Render("!"), w)
	}
	if len(validationErrors) > 0 || len(warnings) > 0 {
		fmt.Println("")
	}

	fmt.Println("Plugin Summary:")
	fmt.Println("───────────────")
	fmt.Printf("Name: %s\n", m.Name)
	fmt.Printf("Version: %s\n", m.Version)
	fmt.Printf("QGIS Minimum Version: %s\n", m.QGISMinimumVersion)
	fmt.Printf("Author: %s\n", m.Author)
	fmt.Printf("Package Name: %s\n", m.PackageName())
	fmt.Printf("Experimental: %t\n", m.Experimental.Bool())
	fmt.Println("")

	switch {
	case len(validationErrors) > 0:
		fmt.Println(errorStyle.Render(fmt.Sprintf("✗ %d error(s), %d warning(s)", len(validationErrors), len(warnings))))
		return fmt.Errorf("%s has %d error(s): %w", manifestPath, len(validationErrors), ErrValidationFailed)

	case flags.Strict && len(warnings) > 0:
		fmt.Println(warningStyle.Render(fmt.Sprintf("! %d warning(s) treated as errors (--strict)", len(warnings))))
		return fmt.Errorf("%s has %d warning(s) and --strict is set: %w", manifestPath, len(warnings), ErrValidationFailed)

	case len(warnings) > 0:
		fmt.Println(successStyle.Render("✅ metadata.txt is valid") + dimStyle.Render(fmt.Sprintf(" (%d warning(s))", len(warnings))))

	default:
		fmt.Println(successStyle.Render("✅ metadata.txt is valid"))
	}

	return nil
}

// flattenErrors expands a multierror into its individual failures so the
// report can print one line per problem
func flattenErrors(err error) []error {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return merr.Errors
	}
	return []error{err}
}
