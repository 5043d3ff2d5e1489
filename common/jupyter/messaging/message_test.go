package messaging_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
)

var _ = Describe("Message", func() {
	It("Will derive the base and reply types of requests", func() {
		base, ok := messaging.JupyterMessageType("execute_request").GetBaseMessageType()
		Expect(ok).To(BeTrue())
		Expect(base).To(Equal("execute_"))

		reply, ok := messaging.JupyterMessageType("kernel_info_request").ReplyType()
		Expect(ok).To(BeTrue())
		Expect(reply).To(Equal(messaging.JupyterMessageType("kernel_info_reply")))

		_, ok = messaging.JupyterMessageType("status").ReplyType()
		Expect(ok).To(BeFalse())
	})

	It("Will encode an empty header as an empty object", func() {
		data, err := json.Marshal(messaging.MessageHeader{})
		Expect(err).To(BeNil())
		Expect(string(data)).To(Equal("{}"))

		header := messaging.MessageHeader{MsgID: "id", MsgType: "status"}
		data, err = json.Marshal(&header)
		Expect(err).To(BeNil())
		Expect(string(data)).To(ContainSubstring(`"msg_id":"id"`))
	})

	It("Will carry header keys it does not interpret into the parent header of the reply", func() {
		received := `{"msg_id":"m1","username":"jovyan","session":"s1","date":"2024-04-03T22:55:52.605Z",` +
			`"msg_type":"execute_request","version":"5.3","subshell_id":null,"trace":{"span":7}}`

		request := &messaging.JupyterMessage{}
		Expect(json.Unmarshal([]byte(received), &request.Header)).To(Succeed())
		Expect(request.Header.MsgID).To(Equal("m1"))
		Expect(request.Header.Extra).To(HaveLen(2))
		Expect(request.Header.Extra).To(HaveKey("subshell_id"))

		reply, err := messaging.CreateReply(request, nil)
		Expect(err).To(BeNil())

		parent, err := json.Marshal(reply.ParentHeader)
		Expect(err).To(BeNil())
		Expect(parent).To(MatchJSON(received))

		// Only the parent keeps them; the reply's own header is fresh.
		Expect(reply.Header.Extra).To(BeNil())
	})

	It("Will not let extra keys shadow the interpreted fields", func() {
		header := messaging.MessageHeader{
			MsgID: "id",
			Extra: map[string]json.RawMessage{"msg_id": json.RawMessage(`"other"`), "cell": json.RawMessage(`1`)},
		}

		data, err := json.Marshal(header)
		Expect(err).To(BeNil())
		Expect(data).To(MatchJSON(`{"msg_id":"id","username":"","session":"","date":"","msg_type":"","version":"","cell":1}`))
	})

	Context("Replies", func() {
		var request *messaging.JupyterMessage

		BeforeEach(func() {
			request = newRequest()
		})

		It("Will link the reply to the request", func() {
			reply, err := messaging.CreateReply(request, map[string]interface{}{"status": "ok"})
			Expect(err).To(BeNil())

			Expect(reply.ParentHeader).To(Equal(request.Header))
			Expect(reply.JupyterParentMessageId()).To(Equal(request.JupyterMessageId()))
			Expect(reply.Type()).To(Equal(messaging.JupyterMessageType(messaging.ExecuteReplyType)))
			Expect(reply.JupyterMessageId()).ToNot(Equal(request.JupyterMessageId()))
			Expect(reply.JupyterMessageId()).ToNot(BeEmpty())
			Expect(reply.JupyterSession()).To(Equal(request.JupyterSession()))
			Expect(reply.Header.Username).To(Equal(request.Header.Username))
			Expect(reply.Header.Version).To(Equal(request.Header.Version))

			_, err = time.Parse(time.RFC3339Nano, reply.Header.Date)
			Expect(err).To(BeNil())
		})

		It("Will copy the identities of the request verbatim", func() {
			reply, err := messaging.CreateReply(request, nil)
			Expect(err).To(BeNil())
			Expect(reply.Identities).To(Equal(request.Identities))

			reply.Identities[0][0] = 'X'
			Expect(string(request.Identities[0])).To(Equal("client-1"))
		})

		It("Will generate a fresh message id for every reply", func() {
			first, err := messaging.CreateReply(request, nil)
			Expect(err).To(BeNil())
			second, err := messaging.CreateReply(request, nil)
			Expect(err).To(BeNil())

			Expect(first.JupyterMessageId()).ToNot(Equal(second.JupyterMessageId()))
		})

		It("Will refuse to reply to a message that is not a request", func() {
			request.Header.MsgType = messaging.IOStatusMessage
			_, err := messaging.CreateReply(request, nil)
			Expect(err).ToNot(BeNil())
		})
	})

	It("Will address broadcasts to the session topic", func() {
		request := newRequest()
		msg := messaging.CreateBroadcast(request.Header, messaging.IOStatusMessage, map[string]interface{}{"execution_state": "busy"})

		Expect(msg.Identities).To(HaveLen(1))
		Expect(string(msg.Identities[0])).To(Equal("kernel." + request.Header.Session + ".status"))
		Expect(msg.ParentHeader).To(Equal(request.Header))
		Expect(msg.Type()).To(Equal(messaging.JupyterMessageType(messaging.IOStatusMessage)))
	})

	It("Will map message types onto request kinds", func() {
		Expect(messaging.ParseRequestKind(messaging.KernelInfoRequestType)).To(Equal(messaging.KindKernelInfoRequest))
		Expect(messaging.ParseRequestKind(messaging.ExecuteRequestType)).To(Equal(messaging.KindExecuteRequest))
		Expect(messaging.ParseRequestKind(messaging.IsCompleteRequestType)).To(Equal(messaging.KindIsCompleteRequest))
		Expect(messaging.ParseRequestKind(messaging.ShutdownRequestType)).To(Equal(messaging.KindShutdownRequest))
		Expect(messaging.ParseRequestKind("comm_open")).To(Equal(messaging.KindUnrecognized))
		Expect(messaging.ParseRequestKind(messaging.ExecuteReplyType)).To(Equal(messaging.KindUnrecognized))
		Expect(messaging.KindExecuteRequest.String()).To(Equal(messaging.ExecuteRequestType))
	})

	It("Will decode request content into typed structs", func() {
		var req messaging.ExecuteRequest
		err := messaging.DecodeContent(map[string]interface{}{
			"code":             "1 + 1",
			"silent":           true,
			"store_history":    false,
			"user_expressions": map[string]interface{}{},
		}, &req)
		Expect(err).To(BeNil())
		Expect(req.Code).To(Equal("1 + 1"))
		Expect(req.Silent).To(BeTrue())

		var input messaging.ExecuteInputContent
		err = messaging.DecodeContent(map[string]interface{}{"code": "x", "execution_count": float64(3)}, &input)
		Expect(err).To(BeNil())
		Expect(input.ExecutionCount).To(Equal(3))
	})

	It("Will convert typed content into a generic map", func() {
		m, err := messaging.ToMap(&messaging.IsCompleteReply{Status: messaging.IsCompleteStatusIncomplete, Indent: "    "})
		Expect(err).To(BeNil())
		Expect(m).To(Equal(map[string]interface{}{"status": "incomplete", "indent": "    "}))

		m, err = messaging.ToMap(nil)
		Expect(err).To(BeNil())
		Expect(m).To(BeEmpty())
	})
})
