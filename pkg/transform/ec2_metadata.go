package transform

import (
	"context"
	"sync/atomic"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
)

func init() {
	RegisterConfig("aws_ec2_metadata", func() Config { return &Ec2MetadataConfig{} })
}

var defaultEc2Fields = []string{
	"instance-id",
	"instance-type",
	"ami-id",
	"account-id",
	"availability-zone",
	"region",
	"local-ipv4",
}

// Ec2MetadataConfig configures the aws_ec2_metadata transform, which
// enriches every event with instance identity fields fetched from the
// EC2 instance metadata service. The metadata is refreshed on an
// interval in the background; transforms read an immutable snapshot.
type Ec2MetadataConfig struct {
	// Namespace prefixes the injected field names, e.g. "ec2" yields
	// "ec2.instance-id" on logs.
	Namespace string `yaml:"namespace,omitempty"`

	// Fields restricts which metadata keys are injected. Defaults to
	// all known keys.
	Fields []string `yaml:"fields,omitempty"`

	RefreshIntervalSecs int `yaml:"refresh_interval_secs,omitempty"`

	// Required makes the build fail when the metadata service is
	// unreachable instead of starting with an empty snapshot.
	Required bool `yaml:"required,omitempty"`
}

func (c *Ec2MetadataConfig) ComponentName() string { return "aws_ec2_metadata" }

func (c *Ec2MetadataConfig) Build(ctx *config.TransformContext) (Transform, error) {
	fields := c.Fields
	if len(fields) == 0 {
		fields = defaultEc2Fields
	}
	allowed := make(map[string]bool, len(fields))
	for _, f := range fields {
		allowed[f] = true
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx.Context)
	if err != nil {
		return Transform{}, errors.Wrap(err, errors.CodeInvalidConfig, "loading AWS configuration")
	}

	keeper := &ec2MetadataKeeper{
		client:    imds.NewFromConfig(awsCfg),
		allowed:   allowed,
		namespace: c.Namespace,
		logger:    ctx.Logger,
	}

	if err := keeper.refresh(ctx.Context); err != nil {
		if c.Required {
			return Transform{}, errors.Wrap(err, errors.CodeInvalidConfig, "querying EC2 instance metadata")
		}
		ctx.Logger.Warn("initial EC2 metadata fetch failed, starting with empty snapshot",
			zap.Error(err))
	}

	interval := time.Duration(c.RefreshIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go keeper.run(ctx.Context, interval)

	return NewFunction(&ec2Metadata{keeper: keeper}), nil
}

func (c *Ec2MetadataConfig) Input() config.Input { return config.InputAll() }

func (c *Ec2MetadataConfig) Outputs(_ *config.Definition, _ config.LogNamespace) []config.Output {
	return []config.Output{config.DefaultOutput(config.DataTypeAll)}
}

func (c *Ec2MetadataConfig) Nestable(_ map[string]bool) bool { return true }

// ec2MetadataKeeper owns the background refresh loop and publishes
// whole-map snapshots so that readers never observe a partial update.
type ec2MetadataKeeper struct {
	client    *imds.Client
	allowed   map[string]bool
	namespace string
	logger    *zap.Logger
	snapshot  atomic.Pointer[map[string]string]
}

func (k *ec2MetadataKeeper) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := k.refresh(ctx); err != nil {
				k.logger.Warn("EC2 metadata refresh failed", zap.Error(err))
			}
		}
	}
}

func (k *ec2MetadataKeeper) refresh(ctx context.Context) error {
	out, err := k.client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return err
	}
	doc := out.InstanceIdentityDocument

	fields := map[string]string{
		"instance-id":       doc.InstanceID,
		"instance-type":     doc.InstanceType,
		"ami-id":            doc.ImageID,
		"account-id":        doc.AccountID,
		"availability-zone": doc.AvailabilityZone,
		"region":            doc.Region,
		"local-ipv4":        doc.PrivateIP,
	}

	next := make(map[string]string, len(fields))
	for key, value := range fields {
		if !k.allowed[key] || value == "" {
			continue
		}
		name := key
		if k.namespace != "" {
			name = k.namespace + "." + key
		}
		next[name] = value
	}
	k.snapshot.Store(&next)
	return nil
}

type ec2Metadata struct {
	keeper *ec2MetadataKeeper
}

func (t *ec2Metadata) Transform(e event.Event, output *OutputsBuf) {
	if p := t.keeper.snapshot.Load(); p != nil {
		for name, value := range *p {
			switch ev := e.(type) {
			case *event.Metric:
				if ev.Tags == nil {
					ev.Tags = make(map[string]string)
				}
				ev.Tags[name] = value
			case *event.TraceEvent:
				if ev.Attributes == nil {
					ev.Attributes = make(map[string]interface{})
				}
				ev.Attributes[name] = value
			default:
				e.SetField(name, value)
			}
		}
	}
	output.Push(e)
}
