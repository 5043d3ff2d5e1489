package kernel_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/scusemua/notebook-kernel/common/jupyter/kernel"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/mock_kernel"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/test_utils"
)

const (
	session = "8d929395-c277-4174-ba35-98eb1dcafbd1"
)

func kernelInfo() *messaging.KernelInfoReply {
	return &messaging.KernelInfoReply{
		Status:                messaging.MessageStatusOK,
		ProtocolVersion:       messaging.ProtocolVersion,
		Implementation:        "notebook-kernel",
		ImplementationVersion: "0.1.0",
		LanguageInfo: messaging.LanguageInfo{
			Name:          "python",
			MimeType:      "text/x-python",
			FileExtension: ".py",
		},
		HelpLinks: []messaging.HelpLink{},
	}
}

func executionStates(msgs []*messaging.JupyterMessage) []string {
	states := make([]string, 0)
	for _, msg := range msgs {
		if msg.Type() == messaging.IOStatusMessage {
			states = append(states, msg.Content["execution_state"].(string))
		}
	}
	return states
}

var _ = Describe("Dispatcher", func() {
	var (
		mockCtrl    *gomock.Controller
		mockHandler *mock_kernel.MockHandler
		channels    *test_utils.RecordingChannels
		codec       *messaging.Codec
		dispatcher  *kernel.Dispatcher
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockHandler = mock_kernel.NewMockHandler(mockCtrl)
		channels = &test_utils.RecordingChannels{}

		var err error
		codec, err = messaging.NewCodec(test_utils.SignatureScheme, test_utils.KernelKey)
		Expect(err).To(BeNil())

		dispatcher = kernel.NewDispatcher(context.Background(), codec, mockHandler, channels, nil)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("kernel_info_request", func() {
		It("Will bracket the reply with busy and idle and answer on the shell channel", func() {
			mockHandler.EXPECT().Describe().Return(kernelInfo()).Times(1)

			header, frames := test_utils.CreateJupyterMessageFrames(messaging.KernelInfoRequestType, session, test_utils.KernelKey, map[string]interface{}{})
			state := dispatcher.Dispatch(types.ShellMessage, frames)
			Expect(state).To(Equal(kernel.Replied))

			sent := channels.Sent()
			Expect(sent).To(HaveLen(3))
			Expect(sent[0].Channel).To(Equal(types.IOMessage))
			Expect(sent[1].Channel).To(Equal(types.IOMessage))
			Expect(sent[2].Channel).To(Equal(types.ShellMessage))

			msgs := channels.Decoded(codec)
			Expect(executionStates(msgs)).To(Equal([]string{messaging.MessageKernelStatusBusy, messaging.MessageKernelStatusIdle}))
			Expect(msgs[0].ParentHeader).To(Equal(header))
			Expect(msgs[1].ParentHeader).To(Equal(header))
			Expect(string(msgs[0].Identities[0])).To(Equal("kernel." + session + ".status"))

			reply := msgs[2]
			Expect(reply.Type()).To(Equal(messaging.JupyterMessageType(messaging.KernelInfoReplyType)))
			Expect(reply.ParentHeader).To(Equal(header))
			Expect(reply.Content["protocol_version"]).To(Equal("5.3"))
			Expect(reply.Content["language_info"].(map[string]interface{})["file_extension"]).To(Equal(".py"))
		})

		It("Will answer on the control channel when the request arrived there", func() {
			mockHandler.EXPECT().Describe().Return(kernelInfo()).Times(1)

			_, frames := test_utils.CreateJupyterMessageFrames(messaging.KernelInfoRequestType, session, test_utils.KernelKey, map[string]interface{}{})
			Expect(dispatcher.Dispatch(types.ControlMessage, frames)).To(Equal(kernel.Replied))

			sent := channels.Sent()
			Expect(sent).To(HaveLen(3))
			Expect(sent[2].Channel).To(Equal(types.ControlMessage))
		})

		It("Will preserve the routing identities of the request", func() {
			mockHandler.EXPECT().Describe().Return(kernelInfo()).Times(1)

			header := test_utils.CreateRequestHeader(messaging.KernelInfoRequestType, session)
			identities := [][]byte{[]byte("identity-a"), []byte("identity-b")}
			frames := test_utils.CreateJupyterFrames(header, test_utils.KernelKey, identities, map[string]interface{}{})

			dispatcher.Dispatch(types.ShellMessage, frames)

			sent := channels.Sent()
			Expect(sent).To(HaveLen(3))
			Expect(sent[2].Frames[0]).To(Equal([]byte("identity-a")))
			Expect(sent[2].Frames[1]).To(Equal([]byte("identity-b")))
			Expect(sent[2].Frames[2]).To(Equal(messaging.JupyterFrameIDSMSG))
		})
	})

	Context("Authentication", func() {
		It("Will drop a request with a bad signature without any status or reply", func() {
			_, frames := test_utils.CreateJupyterMessageFrames(messaging.ExecuteRequestType, session, "wrong-key", map[string]interface{}{"code": "1"})

			Expect(dispatcher.Dispatch(types.ShellMessage, frames)).To(Equal(kernel.Rejected))
			Expect(channels.Sent()).To(BeEmpty())
		})

		It("Will drop a request that was tampered with", func() {
			_, frames := test_utils.CreateJupyterMessageFrames(messaging.ExecuteRequestType, session, test_utils.KernelKey, map[string]interface{}{"code": "1"})
			frames[len(frames)-1] = []byte(`{"code":"2"}`)

			Expect(dispatcher.Dispatch(types.ShellMessage, frames)).To(Equal(kernel.Rejected))
			Expect(channels.Sent()).To(BeEmpty())
		})

		It("Will drop malformed frames", func() {
			Expect(dispatcher.Dispatch(types.ShellMessage, [][]byte{[]byte("garbage")})).To(Equal(kernel.Rejected))
			Expect(channels.Sent()).To(BeEmpty())
		})
	})

	Context("Unrecognized requests", func() {
		It("Will publish busy and idle but never reply", func() {
			_, frames := test_utils.CreateJupyterMessageFrames("comm_info_request", session, test_utils.KernelKey, map[string]interface{}{})

			Expect(dispatcher.Dispatch(types.ShellMessage, frames)).To(Equal(kernel.IdlePublished))

			msgs := channels.Decoded(codec)
			Expect(msgs).To(HaveLen(2))
			Expect(executionStates(msgs)).To(Equal([]string{messaging.MessageKernelStatusBusy, messaging.MessageKernelStatusIdle}))
		})
	})

	Context("execute_request", func() {
		It("Will publish handler output between busy and idle, parented on the request", func() {
			mockHandler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, req *messaging.ExecuteRequest, publisher kernel.Publisher) (*messaging.ExecuteReply, error) {
					Expect(req.Code).To(Equal("print('hi')"))
					Expect(publisher.Publish(messaging.IOStreamMessage, &messaging.StreamContent{Name: messaging.StreamStdout, Text: "hi\n"})).To(Succeed())
					return &messaging.ExecuteReply{Status: messaging.MessageStatusOK, ExecutionCount: 1}, nil
				}).Times(1)

			header, frames := test_utils.CreateJupyterMessageFrames(messaging.ExecuteRequestType, session, test_utils.KernelKey,
				map[string]interface{}{"code": "print('hi')", "silent": false})
			Expect(dispatcher.Dispatch(types.ShellMessage, frames)).To(Equal(kernel.Replied))

			msgs := channels.Decoded(codec)
			Expect(msgs).To(HaveLen(4))
			Expect(msgs[0].Content["execution_state"]).To(Equal(messaging.MessageKernelStatusBusy))
			Expect(msgs[1].Type()).To(Equal(messaging.JupyterMessageType(messaging.IOStreamMessage)))
			Expect(msgs[1].ParentHeader).To(Equal(header))
			Expect(msgs[1].Content["text"]).To(Equal("hi\n"))
			Expect(msgs[2].Content["execution_state"]).To(Equal(messaging.MessageKernelStatusIdle))
			Expect(msgs[3].Type()).To(Equal(messaging.JupyterMessageType(messaging.ExecuteReplyType)))
			Expect(msgs[3].Content["execution_count"]).To(Equal(float64(1)))
		})

		It("Will still publish idle and send an error reply when the handler fails", func() {
			mockHandler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("engine exploded")).Times(1)
			mockHandler.EXPECT().ExecutionCount().Return(4).Times(1)

			_, frames := test_utils.CreateJupyterMessageFrames(messaging.ExecuteRequestType, session, test_utils.KernelKey,
				map[string]interface{}{"code": "1"})
			Expect(dispatcher.Dispatch(types.ShellMessage, frames)).To(Equal(kernel.Replied))

			msgs := channels.Decoded(codec)
			Expect(msgs).To(HaveLen(3))
			Expect(executionStates(msgs)).To(Equal([]string{messaging.MessageKernelStatusBusy, messaging.MessageKernelStatusIdle}))

			reply := msgs[2]
			Expect(reply.Content["status"]).To(Equal(messaging.MessageStatusError))
			Expect(reply.Content["ename"]).To(Equal(kernel.HandlerErrorName))
			Expect(reply.Content["evalue"]).To(Equal("engine exploded"))
			Expect(reply.Content["traceback"]).ToNot(BeNil())
			Expect(reply.Content["execution_count"]).To(Equal(float64(4)))
		})

		It("Will recover from a handler panic", func() {
			mockHandler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
				func(context.Context, *messaging.ExecuteRequest, kernel.Publisher) (*messaging.ExecuteReply, error) {
					panic("boom")
				}).Times(1)
			mockHandler.EXPECT().ExecutionCount().Return(2).Times(1)

			_, frames := test_utils.CreateJupyterMessageFrames(messaging.ExecuteRequestType, session, test_utils.KernelKey,
				map[string]interface{}{"code": "1"})
			Expect(dispatcher.Dispatch(types.ShellMessage, frames)).To(Equal(kernel.Replied))

			msgs := channels.Decoded(codec)
			Expect(msgs).To(HaveLen(3))
			Expect(msgs[1].Content["execution_state"]).To(Equal(messaging.MessageKernelStatusIdle))
			Expect(msgs[2].Content["ename"]).To(Equal(kernel.HandlerPanicName))
			Expect(msgs[2].Content["evalue"]).To(Equal("boom"))
			Expect(msgs[2].Content["execution_count"]).To(Equal(float64(2)))
		})
	})

	Context("is_complete_request", func() {
		It("Will not report an execution count when the handler fails", func() {
			mockHandler.EXPECT().IsComplete(gomock.Any()).Return(nil, errors.New("no grammar")).Times(1)

			_, frames := test_utils.CreateJupyterMessageFrames(messaging.IsCompleteRequestType, session, test_utils.KernelKey,
				map[string]interface{}{"code": "x"})
			Expect(dispatcher.Dispatch(types.ShellMessage, frames)).To(Equal(kernel.Replied))

			msgs := channels.Decoded(codec)
			Expect(msgs[2].Content["status"]).To(Equal(messaging.MessageStatusError))
			Expect(msgs[2].Content).ToNot(HaveKey("execution_count"))
		})

		It("Will pass the code to the handler", func() {
			mockHandler.EXPECT().IsComplete(&messaging.IsCompleteRequest{Code: "for i in x:"}).
				Return(&messaging.IsCompleteReply{Status: messaging.IsCompleteStatusIncomplete, Indent: "    "}, nil).Times(1)

			_, frames := test_utils.CreateJupyterMessageFrames(messaging.IsCompleteRequestType, session, test_utils.KernelKey,
				map[string]interface{}{"code": "for i in x:"})
			Expect(dispatcher.Dispatch(types.ShellMessage, frames)).To(Equal(kernel.Replied))

			msgs := channels.Decoded(codec)
			Expect(msgs[2].Type()).To(Equal(messaging.JupyterMessageType(messaging.IsCompleteReplyType)))
			Expect(msgs[2].Content["status"]).To(Equal(messaging.IsCompleteStatusIncomplete))
			Expect(msgs[2].Content["indent"]).To(Equal("    "))
		})
	})

	Context("shutdown_request", func() {
		It("Will release the handler once and signal completion after the reply is sent", func() {
			mockHandler.EXPECT().Shutdown(&messaging.ShutdownRequest{Restart: false}).
				Return(&messaging.ShutdownReply{Status: messaging.MessageStatusOK, Restart: false}, nil).Times(1)

			Expect(dispatcher.Done()).ToNot(BeClosed())

			_, frames := test_utils.CreateJupyterMessageFrames(messaging.ShutdownRequestType, session, test_utils.KernelKey,
				map[string]interface{}{"restart": false})
			Expect(dispatcher.Dispatch(types.ControlMessage, frames)).To(Equal(kernel.Replied))

			Expect(dispatcher.Done()).To(BeClosed())

			msgs := channels.Decoded(codec)
			Expect(msgs).To(HaveLen(3))
			Expect(msgs[2].Type()).To(Equal(messaging.JupyterMessageType(messaging.ShutdownReplyType)))
			Expect(msgs[2].Content["restart"]).To(BeFalse())
		})

		It("Will not signal completion when the reply could not be sent", func() {
			mockHandler.EXPECT().Shutdown(gomock.Any()).
				Return(&messaging.ShutdownReply{Status: messaging.MessageStatusOK}, nil).Times(1)
			channels.Err = errors.New("socket closed")

			_, frames := test_utils.CreateJupyterMessageFrames(messaging.ShutdownRequestType, session, test_utils.KernelKey,
				map[string]interface{}{"restart": false})
			dispatcher.Dispatch(types.ControlMessage, frames)

			Expect(dispatcher.Done()).ToNot(BeClosed())
		})
	})

	It("Will parent the reply and broadcasts on the header exactly as it was received", func() {
		mockHandler.EXPECT().Describe().Return(kernelInfo()).Times(1)

		header := test_utils.CreateRequestHeader(messaging.KernelInfoRequestType, session)
		header.Extra = map[string]json.RawMessage{"subshell_id": json.RawMessage("null")}
		frames := test_utils.CreateJupyterFrames(header, test_utils.KernelKey, [][]byte{[]byte("client")}, map[string]interface{}{})
		Expect(dispatcher.Dispatch(types.ShellMessage, frames)).To(Equal(kernel.Replied))

		sent := channels.Sent()
		Expect(sent).To(HaveLen(3))

		requestHeader := frames[1+messaging.JupyterFrameHeader]
		for _, s := range sent {
			_, offset := messaging.SkipIdentitiesFrame(s.Frames)
			Expect(s.Frames[offset+messaging.JupyterFrameParentHeader]).To(MatchJSON(requestHeader))
		}
	})

	It("Will serve a control request while a shell request is still being handled", func() {
		started := make(chan struct{})
		release := make(chan struct{})

		mockHandler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, *messaging.ExecuteRequest, kernel.Publisher) (*messaging.ExecuteReply, error) {
				close(started)
				<-release
				return &messaging.ExecuteReply{Status: messaging.MessageStatusOK, ExecutionCount: 1}, nil
			}).Times(1)
		mockHandler.EXPECT().Describe().Return(kernelInfo()).Times(1)

		shellHeader, shellFrames := test_utils.CreateJupyterMessageFrames(messaging.ExecuteRequestType, session, test_utils.KernelKey,
			map[string]interface{}{"code": "1"})
		controlHeader, controlFrames := test_utils.CreateJupyterMessageFrames(messaging.KernelInfoRequestType, session, test_utils.KernelKey,
			map[string]interface{}{})

		shellDone := make(chan kernel.RequestState, 1)
		go func() {
			defer GinkgoRecover()
			shellDone <- dispatcher.Dispatch(types.ShellMessage, shellFrames)
		}()

		Eventually(started).Should(BeClosed())
		Expect(dispatcher.Dispatch(types.ControlMessage, controlFrames)).To(Equal(kernel.Replied))
		Consistently(shellDone, "100ms").ShouldNot(Receive())

		close(release)
		Eventually(shellDone).Should(Receive(Equal(kernel.Replied)))

		var events []string
		for _, msg := range channels.Decoded(codec) {
			owner := "control"
			if msg.JupyterParentMessageId() == shellHeader.MsgID {
				owner = "shell"
			} else {
				Expect(msg.JupyterParentMessageId()).To(Equal(controlHeader.MsgID))
			}

			if state, ok := msg.Content["execution_state"]; ok {
				events = append(events, owner+":"+state.(string))
			} else {
				events = append(events, owner+":"+msg.Type().String())
			}
		}

		Expect(events).To(Equal([]string{
			"shell:busy",
			"control:busy",
			"control:idle",
			"control:" + messaging.KernelInfoReplyType,
			"shell:idle",
			"shell:" + messaging.ExecuteReplyType,
		}))
	})

	It("Will publish the starting status exactly once", func() {
		Expect(dispatcher.PublishStarting()).To(Succeed())
		Expect(dispatcher.PublishStarting()).To(Succeed())

		msgs := channels.Decoded(codec)
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Content["execution_state"]).To(Equal(messaging.MessageKernelStatusStarting))
		Expect(msgs[0].ParentHeader.IsEmpty()).To(BeTrue())
		Expect(msgs[0].JupyterSession()).To(Equal(dispatcher.Session()))
	})
})
