package tenant

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive prompt that scaffolds a tenant seed and
// writes it to the given path.
func RunWizard(path string) (*Snapshot, error) {
	fmt.Println("Welcome to shoptalk! Let's set up a tenant.")
	fmt.Println()

	idPrompt := promptui.Prompt{
		Label: "Tenant id (short, lowercase)",
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("tenant id is required")
			}
			return nil
		},
	}
	tenantID, err := idPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("tenant id prompt: %w", err)
	}

	snap := Defaults(tenantID)

	namePrompt := promptui.Prompt{Label: "Bot display name", Default: snap.Persona.Name}
	if snap.Persona.Name, err = namePrompt.Run(); err != nil {
		return nil, fmt.Errorf("name prompt: %w", err)
	}

	tonePrompt := promptui.Select{
		Label: "Bot tone",
		Items: []string{"friendly", "professional", "playful"},
	}
	if _, snap.Persona.Tone, err = tonePrompt.Run(); err != nil {
		return nil, fmt.Errorf("tone prompt: %w", err)
	}

	disclaimerPrompt := promptui.Prompt{
		Label:   "Required disclaimer (empty for none)",
		Default: "",
	}
	disclaimer, err := disclaimerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("disclaimer prompt: %w", err)
	}
	if disclaimer != "" {
		snap.Persona.Disclaimers = []string{disclaimer}
	}

	lengthPrompt := promptui.Prompt{
		Label:   "Maximum response length (characters)",
		Default: strconv.Itoa(snap.MaxResponseLength),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	lengthStr, err := lengthPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("length prompt: %w", err)
	}
	snap.MaxResponseLength, _ = strconv.Atoi(lengthStr)

	attributionPrompt := promptui.Select{
		Label: "Append source citations to grounded answers",
		Items: []string{"yes", "no"},
	}
	_, attribution, err := attributionPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("attribution prompt: %w", err)
	}
	snap.Attribution = attribution == "yes"

	if err := SaveSeed(snap, path); err != nil {
		return nil, err
	}

	fmt.Printf("\nTenant seed written to %s. Load it with `shoptalk tenants load %s`.\n", path, path)
	return snap, nil
}
