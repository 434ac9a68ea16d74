// Command ftpsd is a demo FTPS control-channel server wiring C1-C11
// together end to end: it loads one virtual host from a directive
// file, builds its TLS context, and serves AUTH/PBSZ/PROT/CCC/SSCN over
// plain-text FTP framing. The FTP command dispatch engine itself (USER/
// PASS/file transfer) is an explicit external collaborator this module
// does not implement; unrecognized commands get a 502 so the security
// layer can still be exercised end to end against a real client.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/logging"

	"github.com/tgragnato/ftpstls/common/constants"
	"github.com/tgragnato/ftpstls/common/event"
	"github.com/tgragnato/ftpstls/common/metrics"
	"github.com/tgragnato/ftpstls/common/safelog"
	"github.com/tgragnato/ftpstls/common/version"
	"github.com/tgragnato/ftpstls/config"
	"github.com/tgragnato/ftpstls/creds"
	"github.com/tgragnato/ftpstls/ftpstate"
	"github.com/tgragnato/ftpstls/handshake"
	"github.com/tgragnato/ftpstls/ioswitch"
	"github.com/tgragnato/ftpstls/ocspstaple"
	"github.com/tgragnato/ftpstls/passphrase"
	"github.com/tgragnato/ftpstls/peerverify"
	"github.com/tgragnato/ftpstls/sessioncache"
	"github.com/tgragnato/ftpstls/sni"
	"github.com/tgragnato/ftpstls/tickets"
	"github.com/tgragnato/ftpstls/tlsctx"
	"github.com/tgragnato/ftpstls/vhost"
)

func main() {
	listenAddr := flag.String("listen", "0.0.0.0:2121", "control channel listen address")
	configPath := flag.String("config", "", "directive configuration file for the default virtual host")
	hostName := flag.String("hostname", "localhost", "default virtual host name")
	metricsAddr := flag.String("metrics", "", "address to serve Prometheus metrics on (empty disables)")
	logFilename := flag.String("log", "", "log filename (empty logs to stderr)")
	unsafeLogging := flag.Bool("unsafe-logging", false, "prevent logs from being scrubbed")
	versionFlag := flag.Bool("version", false, "display version info and quit")
	flag.Parse()

	if *versionFlag {
		fmt.Fprintf(os.Stderr, "ftpsd %s (%s)\n", version.GetVersion(), version.GetTLSLibraryVersion())
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.LUTC)

	vh := &vhost.VH{SID: 1, Name: *hostName, TLSEngine: true}
	var global config.GlobalOptions
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			log.Fatalf("opening config: %v", err)
		}
		directives, err := config.Parse(f)
		f.Close()
		if err != nil {
			log.Fatalf("parsing config: %v", err)
		}
		if err := config.Apply(vh, &global, directives); err != nil {
			log.Fatalf("applying config: %v", err)
		}
	}

	// The -log flag wins over a TLSLog directive, matching how every
	// other flag here overrides the directive file's defaults.
	logPath := *logFilename
	if logPath == "" {
		logPath = global.LogPath
	}
	var logOutput io.Writer = os.Stderr
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		logOutput = f
	}
	if *unsafeLogging {
		log.SetOutput(logOutput)
	} else {
		log.SetOutput(&safelog.LogScrubber{Output: logOutput})
	}

	dispatcher := event.NewTLSEventDispatcher()
	dispatcher.AddTLSEventListener(loggingListener{})

	manager := vhost.NewManager()
	manager.Register(vh)

	m := metrics.NewMetrics()
	if *metricsAddr != "" {
		if err := m.Start(*metricsAddr); err != nil {
			log.Fatalf("starting metrics listener: %v", err)
		}
	}

	ring, err := tickets.NewRing(global.TicketKeyMaxAge, global.TicketKeyMaxCount)
	if err != nil {
		log.Fatalf("initializing ticket ring: %v", err)
	}
	ring.Dispatcher = dispatcher
	stop := make(chan struct{})
	defer close(stop)
	ring.StartRotationTimer(stop)

	staplingTimeout := vh.StaplingTimeout
	if staplingTimeout <= 0 {
		staplingTimeout = constants.DefaultStaplingTimeout
	}
	stapler := ocspstaple.NewStapler(
		ocspstaple.NewCache(),
		ocspstaple.NewResponder(staplingTimeout, vh.StaplingNoNonce),
		vh.StaplingNoFakeTryLater,
	)
	stapler.Dispatcher = dispatcher

	store := passphrase.NewStore(nil, nil)
	store.Dispatcher = dispatcher
	passphraseFn := creds.PassphraseFunc(func(kind vhost.CredentialKind, path string) ([]byte, error) {
		secret, err := store.Acquire(context.Background(), vh, kind, path, nil)
		if err != nil {
			return nil, err
		}
		return secret.Bytes(), nil
	})

	verifier := &peerverify.Verifier{
		Order:              mechanismsFor(vh.VerifyOrder),
		DNSNameRequired:    vh.Options.DNSNameRequired,
		IPAddressRequired:  vh.Options.IPAddressRequired,
		CommonNameRequired: vh.Options.CommonNameRequired,
	}

	builder := &tlsctx.Builder{
		Passphrase: store,
		Tickets:    ring,
		Stapler:    stapler,
		VerifyPeerCertificate: func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
			if len(verifiedChains) == 0 || len(verifiedChains[0]) == 0 {
				return nil
			}
			return verifier.RevocationCheck(verifiedChains[0][0])
		},
	}

	baseCfg, err := builder.Build(vh, passphraseFn)
	if err != nil {
		log.Fatalf("building TLS context for %s: %v", vh.Name, err)
	}

	var sessionCache *sessioncache.Cache
	if vh.SessionCacheSpec != "" {
		sessionCache, err = sessioncache.ParseSpec(vh.SessionCacheSpec, constants.DefaultSessionCacheTimeout)
		if err != nil {
			log.Fatalf("configuring session cache for %s: %v", vh.Name, err)
		}
	}

	reconciler := &sni.Reconciler{
		Manager:      manager,
		Builder:      builder,
		Dispatcher:   dispatcher,
		PassphraseFn: passphraseFn,
	}

	logger := logging.NewDefaultLoggerFactory().NewLogger("handshake")
	engine := &handshake.Engine{
		DefaultTimeout: handshakeTimeout(vh),
		Log:            logger,
		Metrics:        m,
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatalf("listening on %s: %v", *listenAddr, err)
	}
	log.Printf("ftpsd %s listening on %s (vhost %s)", version.GetVersion(), *listenAddr, vh.Name)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("accept: %v", err)
			continue
		}
		go serveControl(conn, vh, baseCfg, reconciler, engine, m, dispatcher, sessionCache)
	}
}

// serveControl runs one control channel's FTPS command loop: plain-text
// framing with AUTH/PBSZ/PROT/CCC/SSCN delegated to the state machine,
// everything else answered 502 per this binary's scope (see package doc).
func serveControl(conn net.Conn, vh *vhost.VH, baseCfg *tls.Config, reconciler *sni.Reconciler, engine *handshake.Engine, m *metrics.Metrics, dispatcher event.TLSEventDispatcher, sessionCache *sessioncache.Cache) {
	defer conn.Close()

	host := &sni.HostState{OriginalConfig: baseCfg, CurrentSID: vh.SID}
	cfg := baseCfg.Clone()
	cfg.GetConfigForClient = reconciler.GetConfigForClient(host)

	stream := ioswitch.NewStream(conn, false, m)
	stream.Engine = engine
	stream.TLSCfg = cfg

	machine := &ftpstate.Machine{
		State:        ftpstate.StatePlain,
		VH:           vh,
		Engine:       engine,
		CtrlStream:   stream,
		Dispatcher:   dispatcher,
		CCCLimit:     4,
		SessionCache: sessionCache,
	}

	hasCreds := len(cfg.Certificates) > 0 || cfg.GetCertificate != nil
	ctx := context.Background()

	// Implicit FTPS (spec §4.10 scenario S2): the handshake runs before
	// any byte leaves the wire, so the 220 banner below becomes the
	// first thing sent *inside* TLS rather than a plaintext greeting.
	if vh.Options.UseImplicitSSL {
		if !hasCreds {
			log.Printf("implicit TLS configured for %s but no certificate available", vh.Name)
			return
		}
		if err := machine.HandleImplicitSSL(ctx); err != nil {
			log.Printf("implicit TLS handshake failed for %s: %v", vh.Name, err)
			return
		}
	}

	w := bufio.NewWriter(stream)
	reply(w, 220, fmt.Sprintf("%s FTPS ready", vh.Name))

	r := bufio.NewReader(stream)
	sscn := ioswitch.SSCNServer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd, arg := splitCommand(line)
		if cmd == "" {
			continue
		}

		switch strings.ToUpper(cmd) {
		case "QUIT":
			reply(w, 221, "goodbye")
			return
		case "HOST":
			host.HostProcessed = true
			host.HostName = arg
			reply(w, 220, fmt.Sprintf("HOST accepted: %s", arg))
		case "AUTH":
			resp := machine.HandleAUTH(ctx, arg, hasCreds)
			reply(w, resp.Code, resp.Text)
		case "PBSZ":
			n, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil {
				reply(w, 501, "PBSZ requires a numeric argument")
				continue
			}
			resp := machine.HandlePBSZ(n)
			reply(w, resp.Code, resp.Text)
		case "PROT":
			resp := machine.HandlePROT(arg)
			reply(w, resp.Code, resp.Text)
		case "CCC":
			resp := machine.HandleCCC(ctx)
			reply(w, resp.Code, resp.Text)
			if resp.Code == 200 {
				r = bufio.NewReader(stream)
			}
		case "SSCN":
			var resp ftpstate.Response
			resp, sscn = machine.HandleSSCN(arg, sscn)
			reply(w, resp.Code, resp.Text)
		case "USER", "PASS", "ACCT":
			if ok, resp := machine.CheckAuthPolicy(vh.Options.AllowPerUser); !ok {
				reply(w, resp.Code, resp.Text)
				continue
			}
			reply(w, 502, fmt.Sprintf("%s not implemented by this core", cmd))
		default:
			reply(w, 502, fmt.Sprintf("%s not implemented by this core", cmd))
		}
	}
}

func reply(w *bufio.Writer, code int, text string) {
	fmt.Fprintf(w, "%d %s\r\n", code, text)
	w.Flush()
}

func splitCommand(line string) (cmd, arg string) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 2)
	cmd = parts[0]
	if len(parts) == 2 {
		arg = parts[1]
	}
	return cmd, arg
}

func handshakeTimeout(vh *vhost.VH) time.Duration {
	if vh.TimeoutHandshake > 0 {
		return vh.TimeoutHandshake
	}
	return constants.DefaultHandshakeTimeout
}

func mechanismsFor(order []string) []peerverify.Mechanism {
	out := make([]peerverify.Mechanism, 0, len(order))
	for _, m := range order {
		out = append(out, peerverify.Mechanism(strings.ToLower(m)))
	}
	return out
}

type loggingListener struct{}

func (loggingListener) OnNewTLSEvent(ev event.TLSEvent) {
	log.Print(ev.String())
}
