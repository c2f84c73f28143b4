package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	focusedLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	fieldErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// wizardField describes one prompt of the metadata wizard
type wizardField struct {
	key         string
	label       string
	placeholder string
	initial     string
	required    bool
}

// metadataFields returns the prompts in the order they are asked. The
// required fields match what the QGIS plugin repository enforces on
// upload, so a completed wizard passes 'csd validate'.
func metadataFields() []wizardField {
	return []wizardField{
		{key: "name", label: "Plugin name", placeholder: "Cross Section Digitizer", required: true},
		{key: "description", label: "Description", placeholder: "One line shown in the plugin manager", required: true},
		{key: "about", label: "About", placeholder: "A longer description of what the plugin does", required: true},
		{key: "version", label: "Version", initial: "0.1.0", required: true},
		{key: "qgisMinimumVersion", label: "QGIS minimum version", initial: "3.0", required: true},
		{key: "author", label: "Author", required: true},
		{key: "email", label: "Author email", placeholder: "you@example.com", required: true},
		{key: "repository", label: "Repository URL", placeholder: "https://github.com/you/your-plugin", required: true},
		{key: "tracker", label: "Issue tracker URL", placeholder: "defaults to <repository>/issues"},
		{key: "homepage", label: "Homepage URL", placeholder: "defaults to the repository URL"},
		{key: "tags", label: "Tags (comma separated)", placeholder: "geology, cross section, digitizing"},
		{key: "experimental", label: "Experimental (y/N)", initial: "n"},
	}
}

// wizardModel holds the state for the Bubble Tea metadata wizard
type wizardModel struct {
	fields    []wizardField
	inputs    []textinput.Model
	focused   int
	fieldErr  string
	done      bool
	cancelled bool
}

// newWizardModel creates the wizard with one text input per field
func newWizardModel() wizardModel {
	fields := metadataFields()
	inputs := make([]textinput.Model, len(fields))

	for i, field := range fields {
		input := textinput.New()
		input.Placeholder = field.placeholder
		input.SetValue(field.initial)
		input.CharLimit = 200
		input.Width = 60
		if i == 0 {
			input.Focus()
		}
		inputs[i] = input
	}

	return wizardModel{
		fields: fields,
		inputs: inputs,
	}
}

// Init implements the Bubble Tea init method
func (m wizardModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements the Bubble Tea update method
func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit

		case "enter":
			field := m.fields[m.focused]
			if field.required && strings.TrimSpace(m.inputs[m.focused].Value()) == "" {
				m.fieldErr = field.label + " is required"
				return m, nil
			}
			m.fieldErr = ""
			if m.focused == len(m.inputs)-1 {
				m.done = true
				return m, tea.Quit
			}
			return m.focusField(m.focused + 1)

		case "tab", "down":
			m.fieldErr = ""
			return m.focusField(m.focused + 1)

		case "shift+tab", "up":
			m.fieldErr = ""
			return m.focusField(m.focused - 1)
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

// focusField moves focus to the field at index, clamped to the form
func (m wizardModel) focusField(index int) (tea.Model, tea.Cmd) {
	if index < 0 || index >= len(m.inputs) {
		return m, nil
	}
	m.inputs[m.focused].Blur()
	m.focused = index
	return m, m.inputs[m.focused].Focus()
}

// View implements the Bubble Tea view method
func (m wizardModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("📦 New QGIS plugin metadata"))
	b.WriteString("\n\n")

	for i, field := range m.fields {
		label := field.label
		if field.required {
			label += " *"
		}
		style := labelStyle
		if i == m.focused {
			style = focusedLabelStyle
		}
		b.WriteString(style.Render(label))
		b.WriteString("\n")
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
		if i == m.focused && m.fieldErr != "" {
			b.WriteString(fieldErrorStyle.Render(m.fieldErr))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("Field %d of %d | [Enter] Next | [Tab/Shift+Tab] Move | [Esc] Cancel",
		m.focused+1, len(m.fields))))
	b.WriteString("\n")

	return b.String()
}

// values returns the collected answers keyed by metadata key
func (m wizardModel) values() map[string]string {
	answers := make(map[string]string, len(m.fields))
	for i, field := range m.fields {
		answers[field.key] = strings.TrimSpace(m.inputs[i].Value())
	}
	return answers
}

// runWizard runs the interactive form and returns the answers. The
// second return value is false when the user cancelled.
func runWizard() (map[string]string, bool, error) {
	program := tea.NewProgram(newWizardModel())

	finalModel, err := program.Run()
	if err != nil {
		return nil, false, fmt.Errorf("wizard failed: %w", err)
	}

	model, ok := finalModel.(wizardModel)
	if !ok || !model.done {
		return nil, false, nil
	}
	return model.values(), true, nil
}
