package cli

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/loicbachelot/cross-section-digitizer/internal/core/manifest"
	"github.com/spf13/cobra"
)

// InitFlags holds the command-line flags for the init command
type InitFlags struct {
	Defaults bool
	Force    bool
}

// NewInitCommand creates the init command
func NewInitCommand(container *CLIContainer) *cobra.Command {
	flags := &InitFlags{}

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a metadata.txt for a new plugin",
		Long: `Create the metadata.txt of a new QGIS plugin interactively.

The wizard asks for every key the QGIS plugin repository requires plus
the common optional ones, and writes a metadata.txt that passes
'csd validate'. Use --defaults to skip the wizard and scaffold a file
with placeholder values instead.

Examples:
  csd init                       # Wizard in the current directory
  csd init ./my_plugin
  csd init --defaults            # Non-interactive scaffold`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(container, dir, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Defaults, "defaults", false, "Skip the wizard and write placeholder values")
	cmd.Flags().BoolVar(&flags.Force, "force", false, "Overwrite an existing metadata.txt")

	return cmd
}

// runInit collects the metadata and writes the manifest
func runInit(container *CLIContainer, dir string, flags *InitFlags) error {
	manifestPath := filepath.Join(dir, manifest.FileName)
	if _, err := os.Stat(manifestPath); err == nil && !flags.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", manifestPath)
	}

	answers := defaultAnswers(dir)
	if !flags.Defaults {
		wizardAnswers, completed, err := runWizard()
		if err != nil {
			return err
		}
		if !completed {
			fmt.Println("Cancelled, nothing written")
			return nil
		}
		answers = wizardAnswers
	}

	m := manifestFromAnswers(answers)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := m.Save(manifestPath); err != nil {
		return err
	}

	fmt.Printf("✅ Wrote %s\n", manifestPath)
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Println("1. Review the generated metadata.txt")
	fmt.Printf("2. Check it with 'csd validate %s'\n", dir)
	fmt.Printf("3. Build your first package with 'csd package %s'\n", dir)

	return nil
}

// defaultAnswers builds the placeholder values used by --defaults. The
// plugin name comes from the directory name so the scaffold is at least
// recognizable.
func defaultAnswers(dir string) map[string]string {
	base := filepath.Base(dir)
	if abs, err := filepath.Abs(dir); err == nil {
		base = filepath.Base(abs)
	}
	name := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(base))
	if name == "" || name == "." {
		name = "My Plugin"
	}

	author := "Unknown"
	if current, err := user.Current(); err == nil {
		if current.Name != "" {
			author = current.Name
		} else if current.Username != "" {
			author = current.Username
		}
	}

	repository := "https://github.com/example/" + base

	return map[string]string{
		"name":               name,
		"description":        "A QGIS plugin",
		"about":              "Describe what the plugin does here.",
		"version":            "0.1.0",
		"qgisMinimumVersion": "3.0",
		"author":             author,
		"email":              "you@example.com",
		"repository":         repository,
		"tracker":            repository + "/issues",
		"homepage":           repository,
		"tags":               "",
		"experimental":       "n",
	}
}

// manifestFromAnswers maps the collected answers onto a manifest,
// filling the tracker and homepage from the repository when left empty
func manifestFromAnswers(answers map[string]string) *manifest.Manifest {
	m := manifest.New()
	m.Name = answers["name"]
	m.Description = answers["description"]
	m.About = answers["about"]
	m.Version = answers["version"]
	m.QGISMinimumVersion = answers["qgisMinimumVersion"]
	m.Author = answers["author"]
	m.Email = answers["email"]
	m.Repository = answers["repository"]
	m.Tags = answers["tags"]

	m.Tracker = answers["tracker"]
	if m.Tracker == "" && m.Repository != "" {
		m.Tracker = strings.TrimSuffix(m.Repository, "/") + "/issues"
	}
	m.Homepage = answers["homepage"]
	if m.Homepage == "" {
		m.Homepage = m.Repository
	}

	switch strings.ToLower(answers["experimental"]) {
	case "y", "yes", "true", "1":
		m.Experimental = manifest.NewFlag(true)
	}

	return m
}
