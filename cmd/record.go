package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evanofslack/dns-relay/internal/metrics"
	"github.com/evanofslack/dns-relay/internal/provider"
	"github.com/evanofslack/dns-relay/internal/relay"
)

type recordFlags struct {
	domain     string
	recordType string
	content    string
	ttl        int
	proxied    bool
}

var (
	recFlags  recordFlags
	recordCmd = &cobra.Command{
		Use:   "record",
		Short: "Run a single record operation",
	}
)

func init() {
	for _, action := range []string{relay.ActionAdd, relay.ActionUpdate, relay.ActionDelete} {
		sub := &cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s a DNS record", action),
			Args:  cobra.NoArgs,
			RunE:  runRecord,
		}
		sub.Flags().StringVar(&recFlags.domain, "domain", "", "fully qualified record name")
		sub.Flags().StringVar(&recFlags.recordType, "type", "", "record type, e.g. A, AAAA, CNAME, TXT")
		sub.Flags().StringVar(&recFlags.content, "content", "", "record content")
		sub.Flags().IntVar(&recFlags.ttl, "ttl", 1, "record ttl in seconds, 1 for automatic")
		sub.Flags().BoolVar(&recFlags.proxied, "proxied", false, "proxy through cloudflare (A, AAAA and CNAME only)")
		_ = sub.MarkFlagRequired("domain")
		_ = sub.MarkFlagRequired("type")
		recordCmd.AddCommand(sub)
	}
}

// operation builds the request from flags; unset optional flags are left out.
func (f recordFlags) operation(cmd *cobra.Command) relay.Operation {
	op := relay.Operation{
		Action:     cmd.Name(),
		RecordType: f.recordType,
		Domain:     f.domain,
	}
	if cmd.Flags().Changed("content") {
		op.Content = provider.Raw(f.content)
	}
	if cmd.Flags().Changed("ttl") {
		op.TTL = provider.Raw(f.ttl)
	}
	if cmd.Flags().Changed("proxied") {
		op.Proxied = provider.Raw(f.proxied)
	}
	return op
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	metrics := metrics.New(false)
	p, err := newProvider(cfg.Cloudflare, metrics)
	if err != nil {
		return err
	}

	journal, err := openJournal(cfg.Audit, metrics)
	if err != nil {
		return err
	}
	defer journal.Close()

	env, err := relay.NewDispatcher(p, journal).Dispatch(cmd.Context(), recFlags.operation(cmd))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))

	if !env.Success {
		return fmt.Errorf("%s %s record for %s failed", cmd.Name(), recFlags.recordType, recFlags.domain)
	}
	return nil
}
