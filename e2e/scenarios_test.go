//go:build linux

// Package e2e_test drives the connector against a real socket talking to
// testsrv, covering the same scenarios spec section 8 walks through by
// hand: double ping, three pings gathered with waitAll, a replace/select
// round trip, an empty-result select, a CALL to a server-side function,
// and a wait against a connection that was never connected.
//
// Styled after _examples/luma-pharos/transport/tcp_test.go's
// Describe/It shape, updated to ginkgo v2's RunSpecs entry point.
package e2e_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nimbledb/tnt-go/conn"
	"github.com/nimbledb/tnt-go/connector"
	"github.com/nimbledb/tnt-go/iproto"
	"github.com/nimbledb/tnt-go/mpp"
	"github.com/nimbledb/tnt-go/testsrv"
)

const testTimeout = 2 * time.Second

func startServer() (*testsrv.Server, func()) {
	srv, err := testsrv.Listen("127.0.0.1:0", nil)
	Expect(err).NotTo(HaveOccurred())
	ctx, cancel := context.WithCancel(context.Background())
	srv.Start(ctx)
	return srv, func() {
		cancel()
		srv.Close()
	}
}

func hostPort(addr net.Addr) (string, string) {
	host, port, err := net.SplitHostPort(addr.String())
	Expect(err).NotTo(HaveOccurred())
	return host, port
}

func dial(srv *testsrv.Server) (*connector.Reactor, conn.Connection) {
	r, err := connector.New(nil)
	Expect(err).NotTo(HaveOccurred())
	c := conn.New(conn.Config{})
	host, port := hostPort(srv.Addr())
	Expect(r.Connect(c, host, port, testTimeout)).To(Succeed())
	return r, c
}

// decodeTuple materializes a response tuple's bytes back out of the
// connection's inbound buffer, the way an application built on top of
// conn/iproto would.
func decodeTuple(c conn.Connection, rng mpp.ByteRange) any {
	dec := mpp.NewDecoder(c.Impl().InBuf(), rng.Begin)
	defer dec.Close()
	v, status, err := dec.DecodeAny()
	Expect(err).NotTo(HaveOccurred())
	Expect(status).To(Equal(mpp.StatusOK))
	return v
}

var _ = Describe("connector", func() {
	var (
		srv     *testsrv.Server
		cleanup func()
	)

	BeforeEach(func() {
		srv, cleanup = startServer()
	})

	AfterEach(func() {
		cleanup()
	})

	It("round-trips two pings on the same connection", func() {
		r, c := dial(srv)
		defer r.Close()
		defer r.CloseConnection(c)

		sync1, err := c.Ping()
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Wait(c, sync1, testTimeout)).To(Succeed())
		resp1, err := c.GetResponse(sync1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp1.Code).To(BeZero())
		resp1.Close()

		sync2, err := c.Ping()
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Wait(c, sync2, testTimeout)).To(Succeed())
		resp2, err := c.GetResponse(sync2)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp2.Code).To(BeZero())
		resp2.Close()

		Expect(sync2).NotTo(Equal(sync1))
	})

	It("gathers three parallel pings with waitAll", func() {
		r, c := dial(srv)
		defer r.Close()
		defer r.CloseConnection(c)

		syncs := make([]uint64, 3)
		for i := range syncs {
			s, err := c.Ping()
			Expect(err).NotTo(HaveOccurred())
			syncs[i] = s
		}

		Expect(r.WaitAll(c, syncs, testTimeout)).To(Succeed())
		for _, s := range syncs {
			Expect(c.FutureIsReady(s)).To(BeTrue())
			resp, err := c.GetResponse(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Code).To(BeZero())
			resp.Close()
		}
	})

	It("replaces a tuple and selects it back", func() {
		r, c := dial(srv)
		defer r.Close()
		defer r.CloseConnection(c)

		tuple := []any{uint64(1), "alice"}
		sync, err := c.Replace(512, tuple)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Wait(c, sync, testTimeout)).To(Succeed())
		replaceResp, err := c.GetResponse(sync)
		Expect(err).NotTo(HaveOccurred())
		Expect(replaceResp.Err()).NotTo(HaveOccurred())
		replaceResp.Close()

		sync, err = c.Select(512, 0, 1, 0, iproto.IterEQ, []any{uint64(1)})
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Wait(c, sync, testTimeout)).To(Succeed())
		selectResp, err := c.GetResponse(sync)
		Expect(err).NotTo(HaveOccurred())
		Expect(selectResp.Tuples).To(HaveLen(1))

		row := decodeTuple(c, selectResp.Tuples[0])
		Expect(row).To(Equal([]any{uint64(1), "alice"}))
		selectResp.Close()
	})

	It("returns an empty data array for a miss", func() {
		r, c := dial(srv)
		defer r.Close()
		defer r.CloseConnection(c)

		sync, err := c.Select(513, 0, 1, 0, iproto.IterEQ, []any{uint64(999)})
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Wait(c, sync, testTimeout)).To(Succeed())
		resp, err := c.GetResponse(sync)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Tuples).To(BeEmpty())
		resp.Close()
	})

	It("calls a server-side function", func() {
		srv.RegisterFunction("echo", func(args []any) ([]any, error) {
			return args, nil
		})

		r, c := dial(srv)
		defer r.Close()
		defer r.CloseConnection(c)

		sync, err := c.Call("echo", []any{"hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Wait(c, sync, testTimeout)).To(Succeed())
		resp, err := c.GetResponse(sync)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Tuples).To(HaveLen(1))

		row := decodeTuple(c, resp.Tuples[0])
		Expect(row).To(Equal([]any{"hello"}))
		resp.Close()
	})

	It("times out waiting on a connection that was never connected", func() {
		r, err := connector.New(nil)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		c := conn.New(conn.Config{})
		sync, err := c.Ping()
		Expect(err).NotTo(HaveOccurred())

		err = r.Wait(c, sync, 200*time.Millisecond)
		Expect(err).To(MatchError(iproto.ErrTimeout))
	})
})
