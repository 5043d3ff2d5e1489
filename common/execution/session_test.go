package execution_test

import (
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-kernel/common/execution"
	"github.com/scusemua/notebook-kernel/common/jupyter"
	"github.com/scusemua/notebook-kernel/common/jupyter/kernel"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/router"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/test_utils"
)

// A kernel served over real sockets, driven by a client the way a notebook frontend would.
var _ = Describe("Kernel session", func() {
	var (
		ctx        context.Context
		cancel     context.CancelFunc
		codec      *messaging.Codec
		dispatcher *kernel.Dispatcher
		r          *router.Router
		shell      zmq4.Socket
	)

	const session = "f5a7b7e2-5d1e-4a58-9a0b-8a4c1c6d3e21"

	request := func(socket zmq4.Socket, msgType messaging.JupyterMessageType, content map[string]interface{}) (messaging.MessageHeader, *messaging.JupyterMessage) {
		header := test_utils.CreateRequestHeader(msgType, session)
		frames := test_utils.CreateJupyterFrames(header, test_utils.KernelKey, nil, content)
		Expect(socket.Send(zmq4.NewMsgFrom(frames...))).To(Succeed())

		reply, err := socket.Recv()
		Expect(err).To(BeNil())

		msg, err := codec.Decode(reply.Frames)
		Expect(err).To(BeNil())
		return header, msg
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())

		var err error
		codec, err = messaging.NewCodec(test_utils.SignatureScheme, test_utils.KernelKey)
		Expect(err).To(BeNil())

		info := &jupyter.ConnectionInfo{IP: "127.0.0.1", Key: test_utils.KernelKey, KernelName: "python"}
		Expect(info.Validate()).To(Succeed())

		variant, err := execution.LookupVariant(info.KernelName)
		Expect(err).To(BeNil())

		engine := execution.NewEngine(variant, echoRunner)
		dispatcher = kernel.NewDispatcher(ctx, codec, engine, nil, nil)
		r = router.New(ctx, info, dispatcher, nil)
		dispatcher.SetChannels(r)

		Expect(r.Bind()).To(Succeed())
		Expect(r.Serve()).To(Succeed())

		shell = zmq4.NewDealer(ctx)
		Expect(shell.Dial(fmt.Sprintf("tcp://127.0.0.1:%d", r.Socket(types.ShellMessage).Port))).To(Succeed())
	})

	AfterEach(func() {
		_ = shell.Close()
		_ = r.Close()
		cancel()
	})

	It("Will answer kernel_info_request on the shell channel", func() {
		header, reply := request(shell, messaging.KernelInfoRequestType, map[string]interface{}{})

		Expect(reply.Type()).To(Equal(messaging.JupyterMessageType(messaging.KernelInfoReplyType)))
		Expect(reply.ParentHeader.MsgID).To(Equal(header.MsgID))
		Expect(reply.Content["protocol_version"]).To(Equal("5.3"))

		languageInfo := reply.Content["language_info"].(map[string]interface{})
		Expect(languageInfo["file_extension"]).To(Equal(".py"))
	})

	It("Will count executions across requests", func() {
		_, first := request(shell, messaging.ExecuteRequestType, map[string]interface{}{"code": "1", "silent": false})
		_, second := request(shell, messaging.ExecuteRequestType, map[string]interface{}{"code": "2", "silent": false})

		Expect(first.Content["execution_count"]).To(BeNumerically("==", 1))
		Expect(second.Content["execution_count"]).To(BeNumerically("==", 2))
	})

	It("Will answer execute requests sent back to back without waiting for a reply", func() {
		headers := make([]messaging.MessageHeader, 2)
		for i, code := range []string{"1", "2"} {
			headers[i] = test_utils.CreateRequestHeader(messaging.ExecuteRequestType, session)
			frames := test_utils.CreateJupyterFrames(headers[i], test_utils.KernelKey, nil,
				map[string]interface{}{"code": code, "silent": false})
			Expect(shell.Send(zmq4.NewMsgFrom(frames...))).To(Succeed())
		}

		for i, header := range headers {
			raw, err := shell.Recv()
			Expect(err).To(BeNil())

			reply, err := codec.Decode(raw.Frames)
			Expect(err).To(BeNil())
			Expect(reply.JupyterParentMessageId()).To(Equal(header.MsgID))
			Expect(reply.Content["status"]).To(Equal(messaging.MessageStatusOK))
			Expect(reply.Content["execution_count"]).To(BeNumerically("==", i+1))
		}
	})

	It("Will shut down after replying on the control channel", func() {
		control := zmq4.NewDealer(ctx)
		defer control.Close()
		Expect(control.Dial(fmt.Sprintf("tcp://127.0.0.1:%d", r.Socket(types.ControlMessage).Port))).To(Succeed())

		_, reply := request(control, messaging.ShutdownRequestType, map[string]interface{}{"restart": false})
		Expect(reply.Type()).To(Equal(messaging.JupyterMessageType(messaging.ShutdownReplyType)))
		Expect(reply.Content["status"]).To(Equal(messaging.MessageStatusOK))

		Eventually(dispatcher.Done()).Should(BeClosed())
	})
})
