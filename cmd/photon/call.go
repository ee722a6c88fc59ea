package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/photon/internal/errors"
	"github.com/vango-dev/photon/pkg/client"
	"github.com/vango-dev/photon/pkg/rmi"
	"github.com/vango-dev/photon/pkg/variant"
)

type callOptions struct {
	addr    string
	wsURL   string
	ret     string
	timeout time.Duration
}

func callCmd() *cobra.Command {
	var opts callOptions

	cmd := &cobra.Command{
		Use:   "call METHOD [ARG...]",
		Short: "Invoke a remote method",
		Long: `Connect to a server, invoke one method and print its result.

Arguments are Variant literals:
  null            Null
  s:hello         String (also any text without a known prefix)
  hex:deadbeef    ByteArray
  b64:3q2+7w==    ByteArray
  u32:7 i64:-1    Integers (i8 u8 i16 u16 i32 u32 i64 u64)

Examples:
  photon call echo hello --return String
  photon call blob.put s:greeting hex:68656c6c6f -r Uint32
  photon call rmi.methods -r Array --ws ws://localhost:6667/ws`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), os.Stdout, opts, args[0], args[1:])
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Server TCP address (default from photon.json)")
	cmd.Flags().StringVar(&opts.wsURL, "ws", "", "Connect over WebSocket to this URL instead of TCP")
	cmd.Flags().StringVarP(&opts.ret, "return", "r", "String", "Declared return type")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 10*time.Second, "Call timeout")

	return cmd
}

func runCall(ctx context.Context, w io.Writer, opts callOptions, method string, args []string) error {
	ret, ok := variant.ParseType(opts.ret)
	if !ok || !ret.ValidReturn() {
		return errors.New(errors.CLIInvalidReturnTag).WithField("--return").
			WithDetailf("%q is not a type", opts.ret)
	}
	params, err := parseArgs(args)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	c, err := dialServer(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	v, err := c.Call(ctx, method, ret, params...)
	if err != nil {
		var fe *rmi.FaultError
		if stderrors.As(err, &fe) {
			return errors.New(errors.ClientCallFaulted).WithField(method).WithDetail(fe.Message)
		}
		return errors.New(errors.ClientCallFailed).WithField(method).Wrap(err)
	}
	fmt.Fprintln(w, v)
	return nil
}

func parseArgs(args []string) ([]*variant.Variant, error) {
	params := make([]*variant.Variant, len(args))
	for i, arg := range args {
		v, err := variant.Parse(arg)
		if err != nil {
			return nil, errors.New(errors.CLIInvalidArgument).
				WithField(fmt.Sprintf("argument %d", i+1)).Wrap(err)
		}
		params[i] = v
	}
	return params, nil
}

// dialServer connects over WebSocket when opts.wsURL is set and over TCP
// otherwise.
func dialServer(ctx context.Context, opts callOptions) (*client.Client, error) {
	cfg := client.DefaultConfig()
	if opts.timeout > 0 {
		cfg.HandshakeTimeout = opts.timeout
	}

	if opts.wsURL != "" {
		c, err := client.DialWebSocket(ctx, opts.wsURL, cfg)
		if err != nil {
			return nil, errors.New(errors.ClientDialFailed).WithField(opts.wsURL).Wrap(err)
		}
		return c, nil
	}

	addr := opts.addr
	if addr == "" {
		fileCfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		addr = dialAddress(fileCfg.Server.Address)
	}
	c, err := client.Dial(ctx, addr, cfg)
	if err != nil {
		return nil, errors.New(errors.ClientDialFailed).WithField(addr).Wrap(err)
	}
	return c, nil
}

// dialAddress turns a listen address such as ":6666" into one a client can
// dial.
func dialAddress(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
