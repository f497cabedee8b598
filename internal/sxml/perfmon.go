package sxml

import (
	"context"
	"encoding/xml"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

const collectConcurrency = 4

// CounterObject is a PerfMon object and its counter names.
type CounterObject struct {
	Name          string   `json:"name"`
	MultiInstance bool     `json:"multiInstance"`
	Counters      []string `json:"counters"`
}

// Counter is one sampled counter value. Name is the full
// \\host\object(instance)\counter path.
type Counter struct {
	Name   string `xml:"Name" json:"name"`
	Value  int64  `xml:"Value" json:"value"`
	Status int    `xml:"CStatus" json:"status"`
}

type perfmonListCounterReq struct {
	XMLName xml.Name `xml:"ns:perfmonListCounter"`
	Host    string   `xml:"ns:Host"`
}

type perfmonListCounterResp struct {
	Objects []struct {
		Name          string `xml:"Name"`
		MultiInstance bool   `xml:"MultiInstance"`
		Counters      []struct {
			Name string `xml:"Name"`
		} `xml:"ArrayOfCounter>item"`
	} `xml:"ArrayOfObjectInfo>item"`
}

type perfmonCollectReq struct {
	XMLName xml.Name `xml:"ns:perfmonCollectCounterData"`
	Host    string   `xml:"ns:Host"`
	Object  string   `xml:"ns:Object"`
}

type perfmonCollectResp struct {
	Counters []Counter `xml:"ArrayOfCounterInfo>item"`
}

// ListCounters returns the PerfMon objects available on host.
func (c *Client) ListCounters(ctx context.Context, host string) ([]CounterObject, error) {
	var resp perfmonListCounterResp
	if err := c.perfmon.Call(ctx, perfmonList, perfmonListCounterReq{Host: host}, &resp); err != nil {
		return nil, fmt.Errorf("perfmon listCounter: %w", err)
	}
	out := make([]CounterObject, 0, len(resp.Objects))
	for _, o := range resp.Objects {
		obj := CounterObject{Name: o.Name, MultiInstance: o.MultiInstance, Counters: make([]string, 0, len(o.Counters))}
		for _, ctr := range o.Counters {
			obj.Counters = append(obj.Counters, ctr.Name)
		}
		out = append(out, obj)
	}
	return out, nil
}

// CollectCounterData samples every counter of one object on host.
func (c *Client) CollectCounterData(ctx context.Context, host, object string) ([]Counter, error) {
	var resp perfmonCollectResp
	if err := c.perfmon.Call(ctx, perfmonCollect, perfmonCollectReq{Host: host, Object: object}, &resp); err != nil {
		return nil, fmt.Errorf("perfmon collectCounterData %q: %w", object, err)
	}
	if resp.Counters == nil {
		return []Counter{}, nil
	}
	return resp.Counters, nil
}

// CollectObjects samples several objects concurrently and returns counters
// keyed by object name. The first failure cancels the rest.
func (c *Client) CollectObjects(ctx context.Context, host string, objects []string) (map[string][]Counter, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectConcurrency)

	var mu sync.Mutex
	out := make(map[string][]Counter, len(objects))
	for _, obj := range objects {
		g.Go(func() error {
			counters, err := c.CollectCounterData(gctx, host, obj)
			if err != nil {
				return err
			}
			mu.Lock()
			out[obj] = counters
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
