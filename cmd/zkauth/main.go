package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/chaumpedersen"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/client"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/crypto/curve"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/crypto/dleq"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/rpc"
)

// Automatically set through -ldflags
var version = "dev"

var serverFlag = &cli.StringFlag{
	Name:    "server",
	Aliases: []string{"s"},
	Usage:   "server address: http(s)://host:port for HTTP, host:port for gRPC",
	Value:   "127.0.0.1:50051",
	EnvVars: []string{"ZKAUTH_SERVER"},
}

var transportFlag = &cli.StringFlag{
	Name:  "transport",
	Usage: "http or grpc; inferred from --server when unset",
}

var groupFlag = &cli.StringFlag{
	Name:  "group",
	Usage: "named group (" + strings.Join(chaumpedersen.GroupNames(), ", ") + ")",
	Value: chaumpedersen.DefaultGroup,
}

var secretDirFlag = &cli.StringFlag{
	Name:  "secret-dir",
	Usage: "directory holding .secret_<user> files",
	Value: ".",
}

var timeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Usage: "overall deadline for the command",
	Value: 30 * time.Second,
}

var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "log protocol steps",
}

var curveFlag = &cli.StringFlag{
	Name:  "curve",
	Usage: "curve for the demo (" + strings.Join(curve.SupportedCurves(), ", ") + ")",
	Value: "ristretto255",
}

func newApp() *cli.App {
	userCommand := func(name, usage string, action func(context.Context, *client.Client, string, *cli.Context) error) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			ArgsUsage: "<user>",
			Action: func(c *cli.Context) error {
				user := c.Args().First()
				if user == "" {
					return fmt.Errorf("username required")
				}
				return withClient(c, func(ctx context.Context, cl *client.Client) error {
					return action(ctx, cl, user, c)
				})
			},
		}
	}

	return &cli.App{
		Name:    "zkauth",
		Version: version,
		Usage:   "Chaum-Pedersen zero-knowledge authentication client",
		Flags:   []cli.Flag{serverFlag, transportFlag, groupFlag, secretDirFlag, timeoutFlag, verboseFlag},
		Commands: []*cli.Command{
			userCommand("register", "generate a secret for <user> and register it", runRegister),
			userCommand("login", "authenticate <user> with the saved secret", runLogin),
			userCommand("both", "register <user> with a fresh secret, then authenticate", runBoth),
			{
				Name:  "params",
				Usage: "show the server's group",
				Action: func(c *cli.Context) error {
					return withClient(c, func(ctx context.Context, cl *client.Client) error {
						return runParams(ctx, cl, c)
					})
				},
			},
			{
				Name:   "demo",
				Usage:  "run the proof locally over an elliptic curve",
				Flags:  []cli.Flag{curveFlag},
				Action: runDemo,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newTransport(ctx context.Context, c *cli.Context) (client.Transport, error) {
	server := c.String(serverFlag.Name)
	kind := c.String(transportFlag.Name)
	if kind == "" {
		kind = "grpc"
		if strings.HasPrefix(server, "http://") || strings.HasPrefix(server, "https://") {
			kind = "http"
		}
	}

	switch kind {
	case "http":
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		return client.NewHTTPTransport(server, nil), nil
	case "grpc":
		cl, err := rpc.Dial(ctx, server)
		if err != nil {
			return nil, err
		}
		return cl, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

func withClient(c *cli.Context, fn func(context.Context, *client.Client) error) error {
	params, err := chaumpedersen.Group(c.String(groupFlag.Name))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration(timeoutFlag.Name))
	defer cancel()

	transport, err := newTransport(ctx, c)
	if err != nil {
		return err
	}
	defer transport.Close()

	level := log.ErrorLevel
	if c.Bool(verboseFlag.Name) {
		level = log.DebugLevel
	}
	logger := log.New(os.Stderr, level, false)

	cl := client.New(transport, params,
		client.WithSecretDir(c.String(secretDirFlag.Name)),
		client.WithLogger(logger),
	)
	return fn(ctx, cl)
}

func runRegister(ctx context.Context, cl *client.Client, user string, c *cli.Context) error {
	if err := cl.CheckParams(ctx); err != nil {
		return err
	}
	if err := cl.Register(ctx, user); err != nil {
		return err
	}
	path, _ := cl.Secrets().Path(user)
	fmt.Fprintf(c.App.Writer, "registered %q, secret saved to %s\n", user, path)
	return nil
}

func runLogin(ctx context.Context, cl *client.Client, user string, c *cli.Context) error {
	if err := cl.CheckParams(ctx); err != nil {
		return err
	}
	session, err := cl.Login(ctx, user)
	if err != nil {
		return err
	}
	printSession(c, user, session)
	return nil
}

func runBoth(ctx context.Context, cl *client.Client, user string, c *cli.Context) error {
	if err := cl.CheckParams(ctx); err != nil {
		return err
	}
	session, err := cl.Both(ctx, user)
	if err != nil {
		return err
	}
	printSession(c, user, session)
	return nil
}

func printSession(c *cli.Context, user string, session *client.Session) {
	fmt.Fprintf(c.App.Writer, "authenticated %q\nsession: %s\n", user, session.Token)
	if session.ExpiresIn > 0 {
		fmt.Fprintf(c.App.Writer, "expires in: %s\n", session.ExpiresIn)
	}
}

func runParams(ctx context.Context, cl *client.Client, c *cli.Context) error {
	err := cl.CheckParams(ctx)
	if err != nil {
		return err
	}
	params, _ := chaumpedersen.Group(c.String(groupFlag.Name))
	fmt.Fprintf(c.App.Writer, "group: %s\np: %x\nq: %x\nalpha: %s\nbeta: %s\n",
		params, params.P(), params.Q(), params.Alpha(), params.Beta())
	return nil
}

func runDemo(c *cli.Context) error {
	crv, err := curve.FromName(c.String(curveFlag.Name))
	if err != nil {
		return err
	}

	x, err := crv.GenerateScalar()
	if err != nil {
		return err
	}
	prover, err := dleq.NewProver(crv, x)
	if err != nil {
		return err
	}
	statement := prover.Statement()
	w := c.App.Writer

	fmt.Fprintf(w, "curve: %s\n", crv.Name())
	fmt.Fprintf(w, "y1 = x*G: %s\n", hex.EncodeToString(statement.Y1.Bytes()))
	fmt.Fprintf(w, "y2 = x*H: %s\n", hex.EncodeToString(statement.Y2.Bytes()))

	commitment, k, err := prover.Commit()
	if err != nil {
		return err
	}
	challenge, err := dleq.GenerateChallenge(crv)
	if err != nil {
		return err
	}
	s, err := prover.Respond(k, challenge)
	if err != nil {
		return err
	}
	result := dleq.Verify(crv, statement, commitment, challenge, s)
	fmt.Fprintf(w, "interactive proof valid: %t\n", result.Valid)
	if !result.Valid {
		return fmt.Errorf("interactive proof rejected: %v", result.Error)
	}

	label := []byte("zkauth demo")
	proof, err := prover.Prove(label)
	if err != nil {
		return err
	}
	result = dleq.VerifyProof(crv, statement, proof, label)
	fmt.Fprintf(w, "non-interactive proof: %s\n", hex.EncodeToString(proof.Bytes()))
	fmt.Fprintf(w, "non-interactive proof valid: %t\n", result.Valid)
	if !result.Valid {
		return fmt.Errorf("non-interactive proof rejected: %v", result.Error)
	}
	return nil
}
