package wa

import (
	"context"
	"errors"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDeviceName is shown in the phone's linked devices list.
const DefaultDeviceName = "fwdtodo"

// ErrNotPaired is returned when the device store holds no credentials.
var ErrNotPaired = errors.New("whatsapp device not paired; run `fwdtodo login whatsapp`")

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *zap.Logger
}

// NewAdapter opens the device store at dbPath.
func NewAdapter(ctx context.Context, dbPath, deviceName string, logger *zap.Logger) (*Adapter, error) {
	if deviceName == "" {
		deviceName = DefaultDeviceName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	wastore.SetOSInfo(deviceName, [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	return &Adapter{
		client:    whatsmeow.NewClient(deviceStore, nil),
		container: container,
		logger:    logger,
	}, nil
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// AddEventHandler registers a whatsmeow event handler and returns its id.
func (a *Adapter) AddEventHandler(handler whatsmeow.EventHandler) uint32 {
	return a.client.AddEventHandler(handler)
}

func (a *Adapter) RemoveEventHandler(id uint32) {
	a.client.RemoveEventHandler(id)
}

// GetQRChannel returns the QR channel for pairing. Must be called before Connect.
func (a *Adapter) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already logged in")
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}

// ChatName resolves the display name of a chat: the group subject, the
// contact name, or the push name. The own chat is named after the account.
func (a *Adapter) ChatName(ctx context.Context, jid types.JID) string {
	jid = a.ResolveLID(ctx, jid.ToNonAD())
	if jid.Server == types.GroupServer {
		info, err := a.client.GetGroupInfo(ctx, jid)
		if err != nil {
			a.logger.Debug("group info unavailable", zap.String("jid", jid.String()), zap.Error(err))
			return jid.User
		}
		return info.Name
	}
	if own := a.client.Store.ID; own != nil && own.User == jid.User {
		if a.client.Store.PushName != "" {
			return a.client.Store.PushName
		}
		return jid.User
	}
	contact, err := a.client.Store.Contacts.GetContact(ctx, jid)
	if err == nil && contact.Found {
		switch {
		case contact.FullName != "":
			return contact.FullName
		case contact.PushName != "":
			return contact.PushName
		}
	}
	return jid.User
}

// IsUserChat reports whether jid is a one-to-one chat.
func IsUserChat(jid types.JID) bool {
	return jid.Server == types.DefaultUserServer || jid.Server == types.HiddenUserServer
}

// ResolveLID resolves a LID JID to its phone number JID using the device store mapping.
// Returns the original JID if it's not a LID or if resolution fails.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

// Download fetches the attachment of a marshalled waE2E.Message.
func (a *Adapter) Download(ctx context.Context, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("message has no stored media")
	}
	var msg waE2E.Message
	if err := proto.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	var media whatsmeow.DownloadableMessage
	switch {
	case msg.GetImageMessage() != nil:
		media = msg.GetImageMessage()
	case msg.GetDocumentMessage() != nil:
		media = msg.GetDocumentMessage()
	default:
		return nil, fmt.Errorf("%s message has no downloadable media", detectMessageType(&msg))
	}
	data, err := a.client.Download(ctx, media)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	return data, nil
}
