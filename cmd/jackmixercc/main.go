// Package main is the entry point for the jackmixercc bridge
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/james-see/jackmixercc/pkg/config"
	"github.com/james-see/jackmixercc/pkg/mixer"
	"github.com/james-see/jackmixercc/pkg/session"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	settingsPath string
	mixerConfig  string
	sessionFile  string
	debug        bool
	logFile      string

	listenHost string
	listenPort int
	noSession  bool
	volumeStep int
	pwMaps     []string
	httpAddr   string
	midiIn     string
	midiOut    string
	showTUI    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jackmixercc",
	Short: "Remote control and session memory for jack_mixer over MIDI",
	Long: `jackmixercc bridges jack_mixer and remote clients. It keeps the last
value of every mapped MIDI control, answers text commands on a TCP port
and restores the mixer state on the next start.

Examples:
  jackmixercc serve
  jackmixercc serve --ip 0.0.0.0 --step 4 --pw mic,alsa_input.usb-MICROPHONE
  jackmixercc serve --tui --log-file /tmp/jackmixercc.log
  jackmixercc channels -c ~/.config/jack_mixer/config.xml
  jackmixercc session export session.mid`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Print the channel map read from the jack_mixer config",
	Args:  cobra.NoArgs,
	RunE:  runChannels,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and convert the saved session",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved session",
	Args:  cobra.NoArgs,
	RunE:  runSessionShow,
}

var sessionExportCmd = &cobra.Command{
	Use:   "export <out.mid>",
	Short: "Write the saved session as a Standard MIDI File",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionExport,
}

var sessionImportCmd = &cobra.Command{
	Use:   "import <in.mid>",
	Short: "Replace the saved session with the control-changes of a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionImport,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVarP(&mixerConfig, "config", "c", "", "jack_mixer config file")
	rootCmd.PersistentFlags().StringVarP(&sessionFile, "session", "s", "", "Session file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")

	// serve command
	serveCmd.Flags().StringVar(&listenHost, "ip", "localhost", "Control server address")
	serveCmd.Flags().IntVar(&listenPort, "port", 9797, "Control server port")
	serveCmd.Flags().BoolVarP(&noSession, "no-session", "S", false, "Disable session save and restore")
	serveCmd.Flags().IntVar(&volumeStep, "step", mixer.DefaultStep, "Volume step for increase and decrease")
	serveCmd.Flags().StringArrayVar(&pwMaps, "pw", nil, "Mirror a channel to a PipeWire node: <channel>,<node> (repeatable)")
	serveCmd.Flags().StringVar(&httpAddr, "http", "", "Serve the HTTP status API on this address")
	serveCmd.Flags().StringVar(&midiIn, "midi-in", "", "MIDI input port name fragment")
	serveCmd.Flags().StringVar(&midiOut, "midi-out", "", "MIDI output port name fragment")
	serveCmd.Flags().BoolVar(&showTUI, "tui", false, "Show the live terminal monitor")

	// Add commands
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionExportCmd)
	sessionCmd.AddCommand(sessionImportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(sessionCmd)
}

// loadSettings merges the settings file, environment and command-line flags
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	s, err := config.Load(settingsPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("config") {
		s.Mixer.Config = mixerConfig
	}
	if flags.Changed("session") {
		s.Session.Durable = sessionFile
	}
	if flags.Changed("debug") {
		s.Log.Debug = debug
	}
	if flags.Changed("log-file") {
		s.Log.File = logFile
	}
	if flags.Lookup("ip") != nil {
		if flags.Changed("ip") {
			s.Listen.Host = listenHost
		}
		if flags.Changed("port") {
			s.Listen.Port = listenPort
		}
		if flags.Changed("no-session") {
			s.Session.Enabled = !noSession
		}
		if flags.Changed("step") {
			s.Mixer.Step = volumeStep
		}
		if flags.Changed("http") {
			s.HTTP.Addr = httpAddr
		}
		if flags.Changed("midi-in") {
			s.MIDI.In = midiIn
		}
		if flags.Changed("midi-out") {
			s.MIDI.Out = midiOut
		}
		for _, v := range pwMaps {
			m, err := config.ParsePipeWireMap(v)
			if err != nil {
				return nil, err
			}
			s.PipeWire = append(s.PipeWire, m)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#39FF14"))).
		Headers(headers...)
}

func ccCell(cc int) string {
	if cc == 0 {
		return "-"
	}
	return strconv.Itoa(cc)
}

func runChannels(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	channels, err := config.LoadChannels(s.Mixer.Config)
	if err != nil {
		return err
	}

	t := newTable("CHANNEL", "VOLUME CC", "MUTE CC", "SOLO CC")
	for _, ch := range channels {
		t.Row(mixer.DisplayName(ch.Name), ccCell(ch.Volume.CC), ccCell(ch.Mute.CC), ccCell(ch.Solo.CC))
	}
	fmt.Println(t.String())
	for _, w := range config.DuplicateControls(channels) {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	snap, err := session.Read(s.Session.Durable)
	if err != nil {
		return err
	}

	// channel names are best effort; the session is still shown without a config
	owners := make(map[int]string)
	if channels, err := config.LoadChannels(s.Mixer.Config); err == nil {
		for i := range channels {
			for _, k := range mixer.Kinds {
				p := channels[i].Property(k)
				if _, taken := owners[p.CC]; p.Bound() && !taken {
					owners[p.CC] = mixer.DisplayName(channels[i].Name) + " " + k.String()
				}
			}
		}
	}

	fmt.Printf("Session %s (modified %s)\n", s.Session.Durable, snap.Modified)
	t := newTable("CC", "VALUE", "CONTROL")
	for _, e := range snap.Entries {
		t.Row(strconv.Itoa(e.CC), strconv.Itoa(e.Value), owners[e.CC])
	}
	fmt.Println(t.String())
	return nil
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	snap, err := session.Read(s.Session.Durable)
	if err != nil {
		return err
	}

	output := args[0]
	data, err := session.ExportSMFBytes(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return err
	}

	fmt.Printf("Exported %s -> %s\n", s.Session.Durable, output)
	return nil
}

func runSessionImport(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	input := args[0]
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	snap, err := session.ImportSMF(f)
	if err != nil {
		return err
	}
	if err := session.Write(s.Session.Durable, snap); err != nil {
		return err
	}

	fmt.Printf("Imported %s -> %s (%d controls)\n", input, s.Session.Durable, len(snap.Entries))
	return nil
}
