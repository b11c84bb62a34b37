package http

import (
	"encoding/json"

	"github.com/avolkov/chanhub/internal/core"
	"github.com/avolkov/chanhub/internal/proto"
	"github.com/avolkov/chanhub/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.ChannelID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channel_id is required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandJoinChannel,
			ChannelID: join.ChannelID,
		}, nil, nil
	case proto.InboundTypeLeave:
		var leave proto.JoinData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, nil, err
		}
		if leave.ChannelID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channel_id is required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandLeaveChannel,
			ChannelID: leave.ChannelID,
		}, nil, nil
	case proto.InboundTypeSend:
		var msg proto.SendData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.ChannelID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channel_id is required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandSendMessage,
			ChannelID: msg.ChannelID,
			Content:   msg.Content,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown message type"}, nil
	}
}

func senderProfile(u store.User) proto.SenderProfile {
	return proto.SenderProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarColor: u.AvatarColor,
		Presence:    string(u.Presence),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventReceiveMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameReceiveMessage,
			Data: proto.EventReceiveMessage{
				ID:        event.Message.ID,
				ChannelID: event.Message.ChannelID,
				SenderID:  event.Message.SenderID,
				Content:   event.Message.Content,
				CreatedAt: event.Message.CreatedAt.Unix(),
				Sender:    senderProfile(event.Message.Sender),
			},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserJoined,
			Data: proto.EventUserJoined{
				ChannelID: event.ChannelID,
				User:      senderProfile(*event.User),
			},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserLeft,
			Data: proto.EventUserLeft{
				ChannelID: event.ChannelID,
				User:      senderProfile(*event.User),
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
