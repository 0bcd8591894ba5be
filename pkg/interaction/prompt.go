// pkg/interaction/prompt.go

package interaction

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// PromptInput displays a prompt and reads user input, falling back to the
// default when the operator just hits enter.
func PromptInput(prompt, defaultVal string) string {
	reader := bufio.NewReader(os.Stdin)
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// PromptSecret asks the user for a hidden input (no terminal echo).
func PromptSecret(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		zap.L().Error("Cannot prompt for secret input: not a TTY")
		return "", fmt.Errorf("secret prompt failed: no terminal available")
	}

	fmt.Print(prompt + ": ")
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	secret := strings.TrimSpace(string(bytePassword))
	if secret == "" {
		zap.L().Warn("No input received for secret", zap.String("prompt", prompt))
	}
	return secret, nil
}

// PromptYesNo asks for confirmation. An empty answer takes the default.
// A non-TTY stdin never confirms: destructive choices require either a
// terminal or an explicit flag.
func PromptYesNo(prompt string, defaultYes bool) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		zap.L().Warn("Cannot confirm interactively: not a TTY", zap.String("prompt", prompt))
		return false
	}

	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s %s: ", prompt, suffix)
	input, _ := reader.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return defaultYes
	}
	return input == "y" || input == "yes"
}

// PromptSelect displays numbered options and returns the selected value.
func PromptSelect(prompt string, options []string) string {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Println(prompt)
		for i, option := range options {
			fmt.Printf("  %d) %s\n", i+1, option)
		}
		fmt.Print("Select: ")
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		for i, option := range options {
			if input == fmt.Sprintf("%d", i+1) || strings.EqualFold(input, option) {
				return option
			}
		}
		fmt.Println("Invalid selection.")
	}
}
