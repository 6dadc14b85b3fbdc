package competition

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"ringmaster/engine"
	"ringmaster/player"
	"ringmaster/scheduler"
	"ringmaster/searcher"
)

const ceTunerStatusVersion = 1

// CETuner tunes engine parameters with the cross-entropy method. Each
// generation samples candidates from the distribution, plays a batch of
// games for each against a fixed opponent, and moves the distribution
// towards the candidates with the most wins.
type CETuner struct {
	base
	*tunerSettings
	samplesPerGeneration int
	numberOfGenerations  int
	batchSize            int
	eliteProportion      float64
	stepSize             float64
	initial              *searcher.Distribution
	seed                 uint64

	rng          *searcher.Rand
	generation   int
	distribution *searcher.Distribution
	samples      [][]float64
	candidates   []*player.Player
	wins         []int
	scheduler    *scheduler.Group
}

func NewCETuner(code string) *CETuner {
	return &CETuner{base: newBase(code)}
}

type ceGameData struct {
	Generation int `json:"generation"`
	Candidate  int `json:"candidate"`
	Number     int `json:"number"`
}

func (c *CETuner) Initialise(cf *ControlFile, baseDir string) error {
	if err := c.base.initialise(cf, baseDir); err != nil {
		return err
	}
	settings, err := c.parseTunerSettings(cf, baseDir)
	if err != nil {
		return err
	}
	c.tunerSettings = settings
	switch {
	case cf.SamplesPerGeneration < 1:
		return controlFileErrorf("samples_per_generation: must be at least 1")
	case cf.NumberOfGenerations < 1:
		return controlFileErrorf("number_of_generations: must be at least 1")
	case cf.BatchSize < 1:
		return controlFileErrorf("batch_size: must be at least 1")
	case cf.EliteProportion <= 0 || cf.EliteProportion > 1:
		return controlFileErrorf("elite_proportion: must be in (0, 1]")
	case cf.StepSize <= 0 || cf.StepSize > 1:
		return controlFileErrorf("step_size: must be in (0, 1]")
	}
	c.samplesPerGeneration = cf.SamplesPerGeneration
	c.numberOfGenerations = cf.NumberOfGenerations
	c.batchSize = cf.BatchSize
	c.eliteProportion = cf.EliteProportion
	c.stepSize = cf.StepSize
	if cf.Seed != nil {
		c.seed = *cf.Seed
	}

	means := make([]float64, len(c.params))
	variances := make([]float64, len(c.params))
	for i, p := range c.params {
		means[i], variances[i] = p.InitialMean, p.InitialVariance
	}
	c.initial, err = searcher.NewDistribution(means, variances)
	if err != nil {
		return inSetting("parameters", err)
	}
	return nil
}

func (c *CETuner) SetCleanStatus() error {
	c.rng = searcher.NewRand(c.seed)
	c.generation = 0
	c.distribution = c.initial
	return c.startGeneration()
}

func candidateCode(generation, index int) string {
	return fmt.Sprintf("g%d#%d", generation, index)
}

// startGeneration samples this generation's candidates.
func (c *CETuner) startGeneration() error {
	c.samples = make([][]float64, c.samplesPerGeneration)
	for i := range c.samples {
		c.samples[i] = c.distribution.Sample(c.rng)
	}
	c.wins = make([]int, c.samplesPerGeneration)
	c.scheduler = scheduler.NewGroup()
	for i := range c.samples {
		c.scheduler.AddGroup(strconv.Itoa(i), c.batchSize)
	}
	return c.makeCandidates()
}

func (c *CETuner) makeCandidates() error {
	c.candidates = make([]*player.Player, len(c.samples))
	for i, sample := range c.samples {
		values, err := engineValues(c.params, sample)
		if err != nil {
			return err
		}
		c.candidates[i] = makeCandidate(c.template, candidateCode(c.generation, i), c.params, values)
	}
	return nil
}

type ceTunerStatus struct {
	Version      int                               `json:"version"`
	Generation   int                               `json:"generation"`
	Distribution *searcher.Distribution            `json:"distribution"`
	Samples      [][]float64                       `json:"samples"`
	Wins         []int                             `json:"wins"`
	Scheduler    map[string]scheduler.SimpleStatus `json:"scheduler"`
	RNG          []byte                            `json:"rng"`
}

func (c *CETuner) Status() (any, error) {
	rng, err := c.rng.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &ceTunerStatus{
		Version:      ceTunerStatusVersion,
		Generation:   c.generation,
		Distribution: c.distribution,
		Samples:      c.samples,
		Wins:         c.wins,
		Scheduler:    c.scheduler.Status(),
		RNG:          rng,
	}, nil
}

func (c *CETuner) SetStatus(data json.RawMessage) error {
	if err := checkStatusVersion(data, ceTunerStatusVersion); err != nil {
		return err
	}
	var status ceTunerStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return fmt.Errorf("invalid tuner status: %w", err)
	}
	if status.Distribution == nil || status.Distribution.Dimension() != len(c.params) {
		return fmt.Errorf("status has the wrong number of parameters")
	}
	if len(status.Samples) != c.samplesPerGeneration || len(status.Wins) != c.samplesPerGeneration {
		return fmt.Errorf("status has the wrong number of samples")
	}
	c.rng = searcher.NewRand(c.seed)
	if err := c.rng.UnmarshalBinary(status.RNG); err != nil {
		return fmt.Errorf("invalid random state: %w", err)
	}
	c.generation = status.Generation
	c.distribution = status.Distribution
	c.samples = status.Samples
	c.wins = status.Wins
	c.scheduler = scheduler.NewGroup()
	for i := range c.samples {
		c.scheduler.AddGroup(strconv.Itoa(i), c.batchSize)
	}
	if err := c.scheduler.SetStatus(status.Scheduler); err != nil {
		return err
	}
	c.scheduler.Rollback()
	return c.makeCandidates()
}

func (c *CETuner) GetGame() (*engine.GameJob, error) {
	if c.generation >= c.numberOfGenerations {
		return nil, ErrNoGameAvailable
	}
	group, n, ok := c.scheduler.Issue()
	if !ok {
		// waiting for the rest of the generation
		return nil, ErrNoGameAvailable
	}
	index, _ := strconv.Atoi(group)
	candidate := c.candidates[index]
	opponent := c.players[c.opponent]
	black, white := candidate, opponent
	if !c.candidateIsBlack(n) {
		black, white = opponent, candidate
	}
	id := fmt.Sprintf("%s_%d", candidate.Code, n)
	return c.newJob(id, black, white, c.config, ceGameData{
		Generation: c.generation, Candidate: index, Number: n,
	})
}

func (c *CETuner) ProcessGameResult(response *engine.GameJobResult) error {
	var data ceGameData
	if err := json.Unmarshal(response.GameData, &data); err != nil {
		return fmt.Errorf("invalid game data for %s: %w", response.GameID, err)
	}
	if data.Generation != c.generation {
		return fmt.Errorf("result for %s is from generation %d, not %d", response.GameID, data.Generation, c.generation)
	}
	if err := c.scheduler.Fix(strconv.Itoa(data.Candidate), data.Number); err != nil {
		return fmt.Errorf("result for %s: %w", response.GameID, err)
	}
	c.recordEngineDescriptions(response)
	// Games without a winner count as losses for the candidate.
	if response.Result.WinningPlayer() == c.candidates[data.Candidate].Code {
		c.wins[data.Candidate]++
	}
	if c.scheduler.AllFixed() {
		return c.finishGeneration()
	}
	return nil
}

func (c *CETuner) finishGeneration() error {
	scores := make([]float64, len(c.wins))
	for i, w := range c.wins {
		scores[i] = float64(w)
	}
	elites := searcher.EliteIndices(scores, searcher.EliteCount(len(c.samples), c.eliteProportion))
	eliteSamples := make([][]float64, len(elites))
	for i, e := range elites {
		eliteSamples[i] = c.samples[e]
	}
	c.logGeneration(elites)
	c.distribution = c.distribution.Update(eliteSamples, c.stepSize)
	c.generation++
	if c.generation >= c.numberOfGenerations {
		return nil
	}
	return c.startGeneration()
}

func (c *CETuner) logGeneration(elites []int) {
	ev := c.history.Info().Int("generation", c.generation)
	for _, e := range elites {
		values, err := engineValues(c.params, c.samples[e])
		if err != nil {
			continue
		}
		ev = ev.Str(candidateCode(c.generation, e), fmt.Sprintf("%d wins %s", c.wins[e], describeValues(c.params, values)))
	}
	ev.Msg("generation finished")
}

// Generation returns the number of the generation in progress, which is
// the number of generations finished.
func (c *CETuner) Generation() int { return c.generation }

func (c *CETuner) Distribution() *searcher.Distribution { return c.distribution }

func (c *CETuner) WriteScreenReport(w io.Writer) {
	c.writeDistribution(w)
	if c.generation < c.numberOfGenerations {
		c.writeCandidates(w)
	}
}

func (c *CETuner) WriteShortReport(w io.Writer) {
	c.writeDescription(w)
	c.WriteScreenReport(w)
}

func (c *CETuner) WriteFullReport(w io.Writer) {
	c.WriteShortReport(w)
	c.writeEngineDescriptions(w)
}

func (c *CETuner) writeDistribution(w io.Writer) {
	fmt.Fprintf(w, "generation %d of %d\n", c.generation, c.numberOfGenerations)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "parameter\tmean\tvariance\tengine value\t")
	for i, p := range c.params {
		value := "--"
		if v, err := engineValues(c.params, c.distribution.Mean); err == nil {
			value = formatValues(c.params, v)[i]
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%s\t\n", p.Code, c.distribution.Mean[i], c.distribution.Variance[i], value)
	}
	tw.Flush()
}

func (c *CETuner) writeCandidates(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "candidate\twins\tplayed\tparameters\t")
	for i, candidate := range c.candidates {
		played := c.scheduler.Scheduler(strconv.Itoa(i)).Fixed()
		values, err := engineValues(c.params, c.samples[i])
		desc := "--"
		if err == nil {
			desc = describeValues(c.params, values)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t\n", candidate.Code, c.wins[i], played, desc)
	}
	tw.Flush()
}
