package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"biru/internal/api"
	"biru/internal/dispatch"
	"biru/internal/store"
)

const dialTimeout = 5 * time.Second

// Client is a typed wrapper over the daemon's JSON-RPC surface.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to a running daemon's unix socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w (is the daemon running?)", socketPath, err)
	}
	return &Client{rpc: jsonrpc.NewClient(conn)}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) call(method string, args, reply any) error {
	return c.rpc.Call(ServiceName+"."+method, args, reply)
}

func (c *Client) Ping() (PingReply, error) {
	var reply PingReply
	err := c.call("Ping", &Empty{}, &reply)
	return reply, err
}

func (c *Client) Status() (StatusReply, error) {
	var reply StatusReply
	err := c.call("Status", &Empty{}, &reply)
	return reply, err
}

func (c *Client) Ingest(title, source, sourceType, contentType string) (api.AssetView, error) {
	args := IngestArgs{Title: title, Source: source, SourceType: sourceType, ContentType: contentType}
	var reply IngestReply
	err := c.call("Ingest", &args, &reply)
	return reply.Asset, err
}

func (c *Client) ListTopClips(assetID int64, count int) ([]api.ClipView, error) {
	args := TopClipsArgs{AssetID: assetID, Count: count}
	var reply TopClipsReply
	err := c.call("ListTopClips", &args, &reply)
	return reply.Clips, err
}

func (c *Client) ScheduleNow(clipID int64, platform string) (api.PostView, error) {
	args := ScheduleNowArgs{ClipID: clipID, Platform: platform}
	var reply ScheduleNowReply
	err := c.call("ScheduleNow", &args, &reply)
	return reply.Post, err
}

func (c *Client) GetStatus(entityType store.EntityType, id int64) (api.StatusView, error) {
	args := GetStatusArgs{EntityType: entityType, EntityID: id}
	var reply GetStatusReply
	err := c.call("GetStatus", &args, &reply)
	return reply.Status, err
}

func (c *Client) RecordMetric(postID int64, metricType string, value float64) (api.MetricView, error) {
	args := RecordMetricArgs{PostID: postID, MetricType: metricType, Value: value}
	var reply RecordMetricReply
	err := c.call("RecordMetric", &args, &reply)
	return reply.Metric, err
}

func (c *Client) ListMetrics(postID int64) ([]MetricRow, error) {
	args := ListMetricsArgs{PostID: postID}
	var reply ListMetricsReply
	err := c.call("ListMetrics", &args, &reply)
	return reply.Metrics, err
}

func (c *Client) Tell(message string) (string, error) {
	args := TellArgs{Message: message}
	var reply TellReply
	err := c.call("Tell", &args, &reply)
	return reply.Reply, err
}

func (c *Client) ListAssets(statuses ...store.Status) ([]api.AssetView, error) {
	args := ListAssetsArgs{Statuses: statuses}
	var reply ListAssetsReply
	err := c.call("ListAssets", &args, &reply)
	return reply.Assets, err
}

func (c *Client) ListPosts(statuses ...store.Status) ([]api.PostView, error) {
	args := ListPostsArgs{Statuses: statuses}
	var reply ListPostsReply
	err := c.call("ListPosts", &args, &reply)
	return reply.Posts, err
}

func (c *Client) ListDecisions(limit int) ([]DecisionView, error) {
	args := ListDecisionsArgs{Limit: limit}
	var reply ListDecisionsReply
	err := c.call("ListDecisions", &args, &reply)
	return reply.Decisions, err
}

func (c *Client) ListWeights() ([]WeightView, error) {
	var reply ListWeightsReply
	err := c.call("ListWeights", &Empty{}, &reply)
	return reply.Weights, err
}

func (c *Client) RetryFailed() (int, error) {
	var reply RetryReply
	err := c.call("RetryFailed", &Empty{}, &reply)
	return reply.Requeued, err
}

func (c *Client) ResetAsset(assetID int64) error {
	args := ResetAssetArgs{AssetID: assetID}
	return c.call("ResetAsset", &args, &Empty{})
}

func (c *Client) PullWork() (dispatch.WorkItem, bool, error) {
	var reply PullWorkReply
	err := c.call("PullWork", &Empty{}, &reply)
	return reply.Item, reply.OK, err
}

func (c *Client) ReportCompletion(completion dispatch.Completion, entityType store.EntityType, entityID int64) error {
	args := ReportCompletionArgs{Completion: completion, EntityType: entityType, EntityID: entityID}
	return c.call("ReportCompletion", &args, &Empty{})
}
