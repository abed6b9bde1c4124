package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 基于业务封装 events --------------------------

// PublishOperationSubmitted 发布 dv.operation.submitted 事件。
// 操作引擎在任务入队、后台协程启动后调用，通知下游（审计、通知等）。
func PublishOperationSubmitted(pub message.Publisher, payload OperationSubmittedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicOperationSubmitted, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicOperationSubmitted, msg)
}

// PublishOperationFinished 发布 dv.operation.finished 事件。
// 无论完成、失败还是取消，任务终结时恰好发布一次。
func PublishOperationFinished(pub message.Publisher, payload OperationFinishedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicOperationFinished, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicOperationFinished, msg)
}

// PublishOperationCanceled 发布 dv.operation.canceled 事件。
func PublishOperationCanceled(pub message.Publisher, payload OperationCanceledPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicOperationCanceled, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicOperationCanceled, msg)
}

// PublishMarkerMarked 发布 dv.marker.marked 事件。
func PublishMarkerMarked(pub message.Publisher, payload MarkerPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicMarkerMarked, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicMarkerMarked, msg)
}

// PublishMarkerCleared 发布 dv.marker.cleared 事件。
func PublishMarkerCleared(pub message.Publisher, payload MarkerPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicMarkerCleared, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicMarkerCleared, msg)
}

// PublishArchiveReady 发布 dv.archive.ready 事件。
func PublishArchiveReady(pub message.Publisher, payload ArchivePayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicArchiveReady, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicArchiveReady, msg)
}

// PublishArchiveExpired 发布 dv.archive.expired 事件。
// 清理任务删除过期压缩包后调用，提醒仍持有取回链接的下游该产物已不可取.
func PublishArchiveExpired(pub message.Publisher, payload ArchivePayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicArchiveExpired, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicArchiveExpired, msg)
}

// ParseOperationFinished 将 Watermill 消息解析为强类型 Envelope（OperationFinishedPayload）。
func ParseOperationFinished(msg *message.Message) (Message[OperationFinishedPayload], error) {
	return ParseWatermillMessage[OperationFinishedPayload](msg)
}

// ParseMarker 将 Watermill 消息解析为强类型 Envelope（MarkerPayload）。
func ParseMarker(msg *message.Message) (Message[MarkerPayload], error) {
	return ParseWatermillMessage[MarkerPayload](msg)
}
