package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teamalert/teamalert/agent/internal/light/hue"
)

var (
	lightsBridge   string
	lightsUsername string
	lightsDevice   string
)

var lightsCmd = &cobra.Command{
	Use:   "lights",
	Short: "Manage the lights of a Hue bridge",
}

var lightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the lights known to the bridge",
	RunE:  runLightsList,
}

var lightsFlashCmd = &cobra.Command{
	Use:   "flash <name>",
	Short: "Flash a light to find it",
	Args:  cobra.ExactArgs(1),
	RunE:  runLightsFlash,
}

var lightsRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename a light",
	Args:  cobra.ExactArgs(2),
	RunE:  runLightsRename,
}

var lightsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a light from the bridge",
	Args:  cobra.ExactArgs(1),
	RunE:  runLightsRemove,
}

var lightsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for new lights",
	RunE:  runLightsSearch,
}

var lightsStealCmd = &cobra.Command{
	Use:   "steal",
	Short: "Take over nearby lights paired with another bridge (touchlink)",
	RunE:  runLightsSteal,
}

var lightsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new bridge username; press the link button first",
	RunE:  runLightsRegister,
}

func init() {
	lightsCmd.PersistentFlags().StringVar(&lightsBridge, "bridge", "", "Hue bridge host or IP")
	lightsCmd.PersistentFlags().StringVar(&lightsUsername, "username", os.Getenv("TEAMALERT_HUE_USERNAME"),
		"Bridge username (default $TEAMALERT_HUE_USERNAME)")
	_ = lightsCmd.MarkPersistentFlagRequired("bridge")
	lightsRegisterCmd.Flags().StringVar(&lightsDevice, "device", "teamalert", "Device type sent to the bridge")

	lightsCmd.AddCommand(lightsListCmd, lightsFlashCmd, lightsRenameCmd, lightsRemoveCmd,
		lightsSearchCmd, lightsStealCmd, lightsRegisterCmd)
}

func newBridge() (*hue.Bridge, error) {
	if lightsUsername == "" {
		return nil, errors.New("--username or $TEAMALERT_HUE_USERNAME is required; run 'teamalert lights register' to get one")
	}
	return hue.New(lightsBridge, lightsUsername), nil
}

func findHueLight(cmd *cobra.Command, b *hue.Bridge, name string) (*hue.Light, error) {
	lights, err := b.Lights(cmd.Context())
	if err != nil {
		return nil, err
	}
	for _, l := range lights {
		if l.Name() == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("light %q not found on bridge %s", name, lightsBridge)
}

func runLightsList(cmd *cobra.Command, args []string) error {
	b, err := newBridge()
	if err != nil {
		return err
	}
	lights, err := b.Lights(cmd.Context())
	if err != nil {
		return err
	}
	if len(lights) == 0 {
		fmt.Println("No lights found.")
		return nil
	}

	fmt.Println(styleHeader.Render(fmt.Sprintf("%-4s %-30s %-13s %s", "ID", "NAME", "REACHABLE", "STATE")))
	for _, l := range lights {
		on, bri := l.State()
		state := styleDim.Render("off")
		if on {
			state = fmt.Sprintf("on (%d)", bri)
		}
		fmt.Printf("%-4s %-30s %s %s\n", l.ID(), l.Name(),
			renderBool(l.Reachable(), pad("yes", 13), pad("out of range", 13)), state)
	}
	return nil
}

func runLightsFlash(cmd *cobra.Command, args []string) error {
	b, err := newBridge()
	if err != nil {
		return err
	}
	l, err := findHueLight(cmd, b, args[0])
	if err != nil {
		return err
	}
	if err := l.Flash(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("Light %q is flashing.\n", args[0])
	return nil
}

func runLightsRename(cmd *cobra.Command, args []string) error {
	b, err := newBridge()
	if err != nil {
		return err
	}
	l, err := findHueLight(cmd, b, args[0])
	if err != nil {
		return err
	}
	if err := l.Rename(cmd.Context(), args[1]); err != nil {
		return err
	}
	fmt.Printf("Renamed %q to %q.\n", args[0], args[1])
	return nil
}

func runLightsRemove(cmd *cobra.Command, args []string) error {
	b, err := newBridge()
	if err != nil {
		return err
	}
	l, err := findHueLight(cmd, b, args[0])
	if err != nil {
		return err
	}
	if err := l.Remove(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("Removed %q.\n", args[0])
	return nil
}

func runLightsSearch(cmd *cobra.Command, args []string) error {
	b, err := newBridge()
	if err != nil {
		return err
	}
	if err := b.Search(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Searching for new lights; run 'teamalert lights list' in a minute.")
	return nil
}

func runLightsSteal(cmd *cobra.Command, args []string) error {
	b, err := newBridge()
	if err != nil {
		return err
	}
	if err := b.TouchLink(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Touchlink started; lights close to the bridge blink when taken over.")
	return nil
}

func runLightsRegister(cmd *cobra.Command, args []string) error {
	b := hue.New(lightsBridge, "")
	username, err := b.Register(cmd.Context(), lightsDevice)
	if errors.Is(err, hue.ErrLinkButton) {
		fmt.Println(styleWarn.Render("Press the link button on the bridge, then run this command again within 30 seconds."))
		return err
	}
	if err != nil {
		return err
	}
	fmt.Println(styleSuccess.Render("Registered."))
	fmt.Printf("export TEAMALERT_HUE_USERNAME=%s\n", username)
	return nil
}
